package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/scan"
	"github.com/hakim/brandwatch/internal/storage"
	"github.com/hakim/brandwatch/internal/threat"
)

// fakeEngine records triggers and replays a scripted status sequence.
type fakeEngine struct {
	mu        sync.Mutex
	triggers  []scan.TriggerRequest
	sequence  []models.ScanStatus
	calls     int
	cancelled []string
}

func (e *fakeEngine) Trigger(_ context.Context, req scan.TriggerRequest) (*models.Scan, error) {
	if _, ok := models.ParseScanType(string(req.Type)); !ok {
		return nil, fmt.Errorf("%w: %q", scan.ErrUnknownScanType, req.Type)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.triggers = append(e.triggers, req)
	return &models.Scan{ID: fmt.Sprintf("scan-%d", len(e.triggers)), BrandID: req.BrandID, Status: models.StatusPending}, nil
}

func (e *fakeEngine) Status(_ context.Context, id string) (models.ScanStatusView, error) {
	if id == "missing" {
		return models.ScanStatusView{}, fmt.Errorf("scan %s: %w", id, storage.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st := models.StatusRunning
	if len(e.sequence) > 0 {
		i := e.calls
		if i >= len(e.sequence) {
			i = len(e.sequence) - 1
		}
		st = e.sequence[i]
	}
	e.calls++
	return models.ScanStatusView{ID: id, Status: st, DomainsChecked: int64(e.calls)}, nil
}

func (e *fakeEngine) Cancel(ctx context.Context, id string) (models.ScanStatusView, error) {
	e.mu.Lock()
	e.cancelled = append(e.cancelled, id)
	e.mu.Unlock()
	return models.ScanStatusView{ID: id, Status: models.StatusCancelled}, nil
}

type testServer struct {
	srv     *httptest.Server
	store   *storage.Store
	threats *threat.Service
	engine  *fakeEngine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logging.Discard()
	ts := &testServer{
		store:   store,
		threats: threat.NewService(store, threat.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond}, log),
		engine:  &fakeEngine{},
	}
	app := NewApp(store, ts.engine, ts.threats, log)
	app.StreamInterval = 5 * time.Millisecond
	ts.srv = httptest.NewServer(app.Router())
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (ts *testServer) brand(t *testing.T) *models.Brand {
	t.Helper()
	b := models.NewBrand("user-1", "Acme", "acme.com")
	require.NoError(t, ts.store.CreateBrand(context.Background(), b))
	return b
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestCreateBrand_TriggersOnboardingScan(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodPost, "/api/v1/brands", CreateBrandRequest{
		OwnerID: "user-1", Name: "Acme", Domain: "https://Acme.com/", Keywords: []string{"widgets"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out CreateBrandResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "acme.com", out.Brand.Domain)
	assert.Equal(t, "scan-1", out.ScanID)
	require.Len(t, ts.engine.triggers, 1)
	assert.Equal(t, models.TriggerOnboarding, ts.engine.triggers[0].Trigger)
	assert.Equal(t, models.ScanFull, ts.engine.triggers[0].Type)

	got, err := ts.store.GetBrand(context.Background(), out.Brand.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets"}, got.Keywords)
}

func TestCreateBrand_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/brands", CreateBrandRequest{OwnerID: "u", Name: "X", Domain: "not a domain"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/brands", CreateBrandRequest{Domain: "acme.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/brands", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ts.engine.triggers)
}

func TestBrand_GetUpdateList(t *testing.T) {
	ts := newTestServer(t)
	b := ts.brand(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/brands/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPut, "/api/v1/brands/"+b.ID, models.BrandUpdate{OwnedDomains: []string{"acme.net"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Brand
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, []string{"acme.net"}, updated.OwnedDomains)
	assert.Equal(t, "acme.com", updated.Domain)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/brands", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []models.Brand
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 1)
}

func TestScans_TriggerStatusCancel(t *testing.T) {
	ts := newTestServer(t)
	b := ts.brand(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/scans", CreateScanRequest{BrandID: b.ID, Preset: "typo"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	var created CreateScanResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, "typo", ts.engine.triggers[0].Preset)
	assert.Equal(t, models.TriggerManual, ts.engine.triggers[0].Trigger)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/scans", CreateScanRequest{BrandID: b.ID, Type: "weekly"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/scans/"+created.ScanID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view models.ScanStatusView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, models.StatusRunning, view.Status)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/scans/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/v1/scans/"+created.ScanID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, models.StatusCancelled, view.Status)
	assert.Equal(t, []string{created.ScanID}, ts.engine.cancelled)
}

func TestScans_EventStream(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.sequence = []models.ScanStatus{models.StatusPending, models.StatusRunning, models.StatusRunning, models.StatusCompleted}

	resp, body := ts.do(t, http.MethodGet, "/api/v1/scans/s1/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	text := string(body)
	assert.True(t, strings.HasPrefix(text, "event: progress\n"))
	assert.Contains(t, text, `"status":"running"`)
	assert.True(t, strings.HasSuffix(text, "\n\n"))
	last := text[strings.LastIndex(strings.TrimSuffix(text, "\n\n"), "event: "):]
	assert.True(t, strings.HasPrefix(last, "event: done\n"), last)
	assert.Contains(t, last, `"status":"completed"`)
}

func TestThreats_ListAndWorkflow(t *testing.T) {
	ts := newTestServer(t)
	b := ts.brand(t)
	ctx := context.Background()

	hi, err := ts.threats.Upsert(ctx, b.ID, models.Finding{Domain: "acme.co", Score: 85, Type: models.ThreatLookalikeWebsite})
	require.NoError(t, err)
	_, err = ts.threats.Upsert(ctx, b.ID, models.Finding{Domain: "acne.com", Score: 40, Type: models.ThreatTyposquatDomain})
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/brands/"+b.ID+"/threats?severity=critical", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Threat
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "acme.co", list[0].Domain)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/brands/"+b.ID+"/threats?severity=extreme", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := hi.Threat.ID
	resp, _ = ts.do(t, http.MethodPatch, "/api/v1/threats/"+id, statusRequest{Status: "takedown_requested"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPatch, "/api/v1/threats/"+id, statusRequest{Status: "resolved"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = ts.do(t, http.MethodPatch, "/api/v1/threats/"+id, statusRequest{Status: "reviewing"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/v1/threats/"+id+"/reopen", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reopened models.Threat
	require.NoError(t, json.Unmarshal(body, &reopened))
	assert.Equal(t, models.ThreatReviewing, reopened.Status)

	resp, _ = ts.do(t, http.MethodPatch, "/api/v1/threats/nope", statusRequest{Status: "resolved"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlertPolicy(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/users/u1/alert-policy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.AlertPolicy
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, models.ThresholdHighCritical, p.Threshold)
	assert.True(t, p.EmailEnabled)

	resp, body = ts.do(t, http.MethodPut, "/api/v1/users/u1/alert-policy", PolicyRequest{LegacySeverities: []string{"critical", "medium"}, WebhookEnabled: true})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, models.ThresholdAll, p.Threshold)

	resp, _ = ts.do(t, http.MethodPut, "/api/v1/users/u1/alert-policy", PolicyRequest{Threshold: "sometimes"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/users/u1/alert-policy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, models.ThresholdAll, p.Threshold)
	assert.False(t, p.EmailEnabled)
	assert.True(t, p.WebhookEnabled)
}

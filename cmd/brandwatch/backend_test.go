package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/alert"
	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/config"
	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/storage"
)

func newTestBackend(t *testing.T) *localBackend {
	t.Helper()
	c := config.DefaultConfig()
	c.Storage.BoltPath = filepath.Join(t.TempDir(), "test.db")

	store, err := openStore(context.Background(), c)
	require.NoError(t, err)

	be, err := newLocalBackend(store, c, logging.Discard(), io.NopCloser(strings.NewReader("")))
	require.NoError(t, err)
	t.Cleanup(func() { be.Close() })
	return be
}

func TestLocalBackendBrandLifecycle(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()

	resp, err := be.CreateBrand(ctx, api.CreateBrandRequest{
		OwnerID:  "user-1",
		Name:     "Acme",
		Domain:   "https://AcmeWidgets.com/",
		Keywords: []string{"widgets"},
		SkipScan: true,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.ScanID)
	assert.Equal(t, "acmewidgets.com", resp.Brand.Domain)

	got, err := be.GetBrand(ctx, resp.Brand.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets"}, got.Keywords)

	country := "DE"
	updated, err := be.UpdateBrand(ctx, resp.Brand.ID, models.BrandUpdate{
		OwnedDomains: []string{"*.acmewidgets.com"},
		CountryCode:  &country,
	})
	require.NoError(t, err)
	assert.Equal(t, "de", updated.CountryCode)
	assert.Equal(t, []string{"widgets"}, updated.Keywords)

	brands, err := be.ListBrands(ctx)
	require.NoError(t, err)
	assert.Len(t, brands, 1)

	scans, err := be.ListScans(ctx, resp.Brand.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestLocalBackendRejectsBadBrands(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()

	_, err := be.CreateBrand(ctx, api.CreateBrandRequest{Name: "Acme", Domain: "acme.com"})
	assert.Error(t, err)

	_, err = be.CreateBrand(ctx, api.CreateBrandRequest{OwnerID: "u", Name: "Acme", Domain: "-acme-.com"})
	assert.ErrorIs(t, err, permute.ErrInvalidSeed)

	_, err = be.ListScans(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalBackendScanUnknownBrand(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()

	_, err := be.TriggerScan(ctx, api.CreateScanRequest{BrandID: "missing", Type: "full"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = be.ScanStatus(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalBackendCancelScanOwnedElsewhere(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()

	running := models.NewScan("b1", models.ScanFull, models.TriggerScheduled)
	started := time.Now().UTC()
	running.Status = models.StatusRunning
	running.StartedAt = &started
	require.NoError(t, be.store.SaveScan(ctx, running))

	view, err := be.CancelScan(ctx, running.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another process")
	assert.Equal(t, models.StatusRunning, view.Status)

	got, err := be.store.GetScan(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)

	done := models.NewScan("b1", models.ScanFull, models.TriggerManual)
	done.Status = models.StatusCompleted
	done.CompletedAt = &started
	require.NoError(t, be.store.SaveScan(ctx, done))

	view, err = be.CancelScan(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, view.Status)

	_, err = be.CancelScan(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalBackendAlertPolicy(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()

	p, err := be.GetAlertPolicy(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdHighCritical, p.Threshold)
	assert.True(t, p.EmailEnabled)

	p, err = be.PutAlertPolicy(ctx, "user-1", api.PolicyRequest{
		LegacySeverities: []string{"critical", "medium"},
		WebhookEnabled:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdAll, p.Threshold)

	p, err = be.GetAlertPolicy(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdAll, p.Threshold)
	assert.True(t, p.WebhookEnabled)
	assert.False(t, p.EmailEnabled)

	_, err = be.PutAlertPolicy(ctx, "user-1", api.PolicyRequest{Threshold: "loud"})
	assert.ErrorIs(t, err, alert.ErrUnknownThreshold)
}

func TestPickDiffScans(t *testing.T) {
	now := time.Now()
	mk := func(id string, age time.Duration, st models.ScanStatus) *models.Scan {
		return &models.Scan{ID: id, Status: st, CreatedAt: now.Add(-age)}
	}
	// newest-first, as the stores return them
	scans := []*models.Scan{
		mk("running", 0, models.StatusRunning),
		mk("c3", time.Hour, models.StatusCompleted),
		mk("failed", 2*time.Hour, models.StatusFailed),
		mk("c2", 3*time.Hour, models.StatusCompleted),
		mk("c1", 4*time.Hour, models.StatusCompleted),
	}

	cur, prev, err := pickDiffScans(scans, "", "")
	require.NoError(t, err)
	assert.Equal(t, "c3", cur.ID)
	assert.Equal(t, "c2", prev.ID)

	cur, prev, err = pickDiffScans(scans, "c2", "")
	require.NoError(t, err)
	assert.Equal(t, "c2", cur.ID)
	assert.Equal(t, "c1", prev.ID)

	cur, prev, err = pickDiffScans(scans, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "c1", cur.ID)
	assert.Nil(t, prev)

	_, prev, err = pickDiffScans(scans, "c3", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", prev.ID)

	_, _, err = pickDiffScans(scans, "nope", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, _, err = pickDiffScans(scans[:1], "", "")
	assert.Error(t, err)
}

func TestLoadBrandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
brands:
  - owner: user-1
    name: Acme Widgets
    domain: acmewidgets.com
    keywords: [widgets, shop]
    owned_domains: ["*.acmewidgets.com"]
  - owner: user-2
    name: Globex
    domain: globex.io
    country: us
`), 0644))

	reqs, err := loadBrandFile(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "Acme Widgets", reqs[0].Name)
	assert.Equal(t, []string{"widgets", "shop"}, reqs[0].Keywords)
	assert.Equal(t, []string{"*.acmewidgets.com"}, reqs[0].OwnedDomains)
	assert.Equal(t, "us", reqs[1].CountryCode)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("brands: []\n"), 0644))
	_, err = loadBrandFile(empty)
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b ,"))
	assert.Equal(t, []string{}, nonNil(splitCSV("")))
}

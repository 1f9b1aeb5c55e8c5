package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/config"
	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/probe"
	"github.com/hakim/brandwatch/internal/risk"
	"github.com/hakim/brandwatch/internal/storage"
	"github.com/hakim/brandwatch/internal/threat"
)

// fakeProber answers every candidate as unregistered except those in hits.
// block, when set, holds each probe until it is closed or ctx ends.
type fakeProber struct {
	mu     sync.Mutex
	calls  int
	probed []string
	hits   map[string]models.ProbeResult
	block  chan struct{}
	onCall func(n int)
}

func (p *fakeProber) Probe(ctx context.Context, cand models.Candidate, _ *probe.Reference, hooks probe.Hooks) models.ProbeResult {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.probed = append(p.probed, cand.Domain)
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}

	res := models.ProbeResult{
		Candidate: cand,
		DNS:       models.DNSResult{State: models.SignalKnown},
		HTTP:      models.HTTPResult{State: models.SignalUnknown, Error: "no such host"},
		Whois:     models.WhoisResult{State: models.SignalUnknown},
	}
	if hit, ok := p.hits[cand.Domain]; ok {
		res = hit
		res.Candidate = cand
	}
	hooks.DNSDone()
	hooks.HTTPDone()
	if p.onCall != nil {
		p.onCall(n)
	}
	return res
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeReference struct{}

func (fakeReference) FetchURL(context.Context, string) (models.HTTPResult, error) {
	return models.HTTPResult{
		State:       models.SignalKnown,
		StatusCode:  200,
		Fingerprint: &models.Fingerprint{Title: "Acme Widgets"},
	}, nil
}

type alertCall struct {
	domain string
	reason string
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

func (a *fakeAlerter) Dispatch(_ context.Context, _ *models.Brand, t *models.Threat, reason string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, alertCall{domain: t.Domain, reason: reason})
	return true, nil
}

type harness struct {
	store   *storage.Store
	threats *threat.Service
	prober  *fakeProber
	alerts  *fakeAlerter
	mgr     *Manager
	brand   *models.Brand
}

func newHarness(t *testing.T, opts Options, gen Generator) *harness {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logging.Discard()
	h := &harness{
		store:   store,
		threats: threat.NewService(store, threat.RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond}, log),
		prober:  &fakeProber{hits: map[string]models.ProbeResult{}},
		alerts:  &fakeAlerter{},
	}
	if opts.MaxDuration == 0 {
		opts.MaxDuration = time.Minute
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = 10 * time.Millisecond
	}
	h.mgr = NewManager(Deps{
		Store:     store,
		Threats:   h.threats,
		Alerts:    h.alerts,
		Prober:    h.prober,
		Reference: fakeReference{},
		Scorer:    risk.NewScorer(risk.WeightsFromConfig(config.DefaultConfig().Risk), nil),
		Generate:  gen,
		Logger:    log,
	}, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.mgr.Shutdown(ctx)
	})

	h.brand = models.NewBrand("user-1", "Acme", "acme.com")
	require.NoError(t, store.CreateBrand(context.Background(), h.brand))
	return h
}

func (h *harness) wait(t *testing.T, id string) models.ScanStatusView {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.mgr.Wait(ctx, id))
	v, err := h.mgr.Status(context.Background(), id)
	require.NoError(t, err)
	return v
}

// activeID returns the ID of the only active scan.
func (h *harness) activeID() string {
	h.mgr.mu.Lock()
	defer h.mgr.mu.Unlock()
	for id := range h.mgr.active {
		return id
	}
	return ""
}

func syntheticCandidates(n int) Generator {
	return func(permute.Seed, []models.Strategy) ([]models.Candidate, error) {
		out := make([]models.Candidate, n)
		for i := range out {
			out[i] = models.Candidate{
				Domain:     fmt.Sprintf("acme%03d.com", i),
				Strategies: []models.Strategy{models.StrategyCombosquat},
			}
		}
		return out, nil
	}
}

func lookalikeHit() models.ProbeResult {
	sim := 0.9
	return models.ProbeResult{
		DNS:        models.DNSResult{State: models.SignalKnown, A: []string{"203.0.113.7"}},
		HTTP:       models.HTTPResult{State: models.SignalKnown, StatusCode: 200, Fingerprint: &models.Fingerprint{Title: "Acme Widgets"}},
		Whois:      models.WhoisResult{State: models.SignalUnknown},
		Similarity: &sim,
	}
}

func TestScan_EndToEndDetectsLookalike(t *testing.T) {
	gen := func(seed permute.Seed, strategies []models.Strategy) ([]models.Candidate, error) {
		cands, err := permute.Generate(seed, strategies)
		if err != nil {
			return nil, err
		}
		extra := models.Candidate{Domain: "acmewidgets.co", Strategies: []models.Strategy{models.StrategyCombosquat}}
		return append([]models.Candidate{extra}, cands...), nil
	}
	h := newHarness(t, Options{Concurrency: 4, MaxCandidates: 20}, gen)
	h.prober.hits["acmewidgets.co"] = lookalikeHit()

	ctx := context.Background()
	s, err := h.mgr.Trigger(ctx, TriggerRequest{
		BrandID:    h.brand.ID,
		Type:       models.ScanFull,
		Strategies: []string{"omission", "tld_variation"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, s.Status)
	assert.Equal(t, models.TriggerManual, s.Trigger)

	v := h.wait(t, s.ID)
	assert.Equal(t, models.StatusCompleted, v.Status)
	assert.LessOrEqual(t, v.Candidates, 20)
	assert.EqualValues(t, v.Candidates, v.DomainsChecked)
	assert.EqualValues(t, 1, v.ThreatsFound)
	assert.NotNil(t, v.StartedAt)
	assert.NotNil(t, v.CompletedAt)

	threats, err := h.store.ListThreats(ctx, models.ThreatFilter{BrandID: h.brand.ID})
	require.NoError(t, err)
	require.Len(t, threats, 1)
	got := threats[0]
	assert.Equal(t, "acmewidgets.co", got.Domain)
	assert.Equal(t, 80, got.Score)
	assert.Equal(t, models.SeverityCritical, got.Severity)
	assert.Equal(t, models.ThreatLookalikeWebsite, got.Type)
	assert.Equal(t, models.ThreatNew, got.Status)

	findings, err := h.store.ListFindings(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, findings, 1)

	require.Len(t, h.alerts.calls, 1)
	assert.Equal(t, "new threat detected", h.alerts.calls[0].reason)

	// A second scan sees the same evidence: no write, no alert.
	s2, err := h.mgr.Trigger(ctx, TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull, Preset: "typo"})
	require.NoError(t, err)
	v2 := h.wait(t, s2.ID)
	assert.Equal(t, models.StatusCompleted, v2.Status)
	assert.Len(t, h.alerts.calls, 1)
	threats, err = h.store.ListThreats(ctx, models.ThreatFilter{BrandID: h.brand.ID})
	require.NoError(t, err)
	assert.Len(t, threats, 1)
}

func TestScan_CancelStopsDispatch(t *testing.T) {
	h := newHarness(t, Options{Concurrency: 1}, syntheticCandidates(100))

	var cancelled models.ScanStatusView
	h.prober.onCall = func(n int) {
		if n == 40 {
			var err error
			cancelled, err = h.mgr.Cancel(context.Background(), h.activeID())
			if err != nil {
				panic(err)
			}
		}
	}

	s, err := h.mgr.Trigger(context.Background(), TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull})
	require.NoError(t, err)
	v := h.wait(t, s.ID)

	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, models.StatusCancelled, v.Status)
	assert.Equal(t, "cancelled by user", v.Error)
	assert.Equal(t, 40, h.prober.callCount())
	assert.EqualValues(t, 40, v.DomainsChecked)
	assert.Equal(t, cancelled.DomainsChecked, v.DomainsChecked)

	// Cancelling again is a no-op.
	again, err := h.mgr.Cancel(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, again.Status)
	assert.EqualValues(t, 40, again.DomainsChecked)
}

func TestScan_IncrementalRechecksLiveThreats(t *testing.T) {
	gen := func(permute.Seed, []models.Strategy) ([]models.Candidate, error) {
		return nil, errors.New("incremental scans must not generate")
	}
	h := newHarness(t, Options{Concurrency: 2}, gen)
	ctx := context.Background()

	live, err := h.threats.Upsert(ctx, h.brand.ID, models.Finding{Domain: "acme.co", Score: 40, Type: models.ThreatBrandImpersonation})
	require.NoError(t, err)
	closed, err := h.threats.Upsert(ctx, h.brand.ID, models.Finding{Domain: "acne.com", Score: 40, Type: models.ThreatTyposquatDomain})
	require.NoError(t, err)
	_, err = h.threats.SetStatus(ctx, closed.Threat.ID, models.ThreatFalsePositive)
	require.NoError(t, err)

	s, err := h.mgr.Trigger(ctx, TriggerRequest{BrandID: h.brand.ID, Type: models.ScanIncremental})
	require.NoError(t, err)
	v := h.wait(t, s.ID)

	assert.Equal(t, models.StatusCompleted, v.Status)
	assert.Equal(t, 1, v.Candidates)
	assert.Equal(t, []string{live.Threat.Domain}, h.prober.probed)
}

func TestScan_GeneratorErrorFailsScan(t *testing.T) {
	gen := func(permute.Seed, []models.Strategy) ([]models.Candidate, error) {
		return nil, errors.New("boom")
	}
	h := newHarness(t, Options{}, gen)

	s, err := h.mgr.Trigger(context.Background(), TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull})
	require.NoError(t, err)
	v := h.wait(t, s.ID)
	assert.Equal(t, models.StatusFailed, v.Status)
	assert.Contains(t, v.Error, "boom")
}

func TestScan_MaxDurationFailsScan(t *testing.T) {
	h := newHarness(t, Options{Concurrency: 2, MaxDuration: 100 * time.Millisecond}, syntheticCandidates(10))
	h.prober.block = make(chan struct{})

	s, err := h.mgr.Trigger(context.Background(), TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull})
	require.NoError(t, err)
	v := h.wait(t, s.ID)
	assert.Equal(t, models.StatusFailed, v.Status)
	assert.Contains(t, v.Error, "maximum duration")
	assert.Equal(t, 2, h.prober.callCount())
}

func TestScan_ShutdownFailsRunningScans(t *testing.T) {
	h := newHarness(t, Options{Concurrency: 1}, syntheticCandidates(5))
	h.prober.block = make(chan struct{})

	s, err := h.mgr.Trigger(context.Background(), TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.prober.callCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.mgr.Shutdown(ctx))

	got, err := h.store.GetScan(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "shutdown")
}

func TestTrigger_Validation(t *testing.T) {
	h := newHarness(t, Options{}, syntheticCandidates(1))
	ctx := context.Background()

	_, err := h.mgr.Trigger(ctx, TriggerRequest{BrandID: h.brand.ID, Type: "weekly"})
	assert.ErrorIs(t, err, ErrUnknownScanType)

	_, err = h.mgr.Trigger(ctx, TriggerRequest{BrandID: "missing", Type: models.ScanFull})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = h.mgr.Trigger(ctx, TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull, Strategies: []string{"bitsquat"}})
	assert.Error(t, err)
}

func TestStatus_UnknownScan(t *testing.T) {
	h := newHarness(t, Options{}, syntheticCandidates(1))
	_, err := h.mgr.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecoverInterrupted(t *testing.T) {
	h := newHarness(t, Options{}, syntheticCandidates(1))
	ctx := context.Background()

	stale := models.NewScan(h.brand.ID, models.ScanFull, models.TriggerManual)
	stale.Status = models.StatusRunning
	require.NoError(t, h.store.SaveScan(ctx, stale))
	done := models.NewScan(h.brand.ID, models.ScanFull, models.TriggerManual)
	done.Status = models.StatusCompleted
	require.NoError(t, h.store.SaveScan(ctx, done))

	n, err := h.mgr.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.store.GetScan(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestScheduler_SkipsBrandsWithActiveScan(t *testing.T) {
	h := newHarness(t, Options{Concurrency: 1}, syntheticCandidates(1))
	ctx := context.Background()
	h.prober.block = make(chan struct{})

	other := models.NewBrand("user-2", "Globex", "globex.com")
	require.NoError(t, h.store.CreateBrand(ctx, other))
	for _, b := range []*models.Brand{h.brand, other} {
		_, err := h.threats.Upsert(ctx, b.ID, models.Finding{Domain: "x" + b.Domain, Score: 40, Type: models.ThreatBrandImpersonation})
		require.NoError(t, err)
	}

	sched := &Scheduler{Manager: h.mgr, Brands: h.store, Interval: time.Hour, Logger: logging.Discard()}
	assert.Equal(t, 2, sched.Tick(ctx))
	assert.Equal(t, 0, sched.Tick(ctx))

	close(h.prober.block)
	scans, err := h.store.ListScansByStatus(ctx, models.StatusPending, models.StatusRunning, models.StatusCompleted)
	require.NoError(t, err)
	var triggers []string
	for _, s := range scans {
		h.wait(t, s.ID)
		triggers = append(triggers, string(s.Trigger))
	}
	sort.Strings(triggers)
	assert.Equal(t, []string{"scheduled", "scheduled"}, triggers)
}

// failingThreats rejects writes for one domain and passes the rest through.
type failingThreats struct {
	next   ThreatWriter
	domain string
}

func (f *failingThreats) Upsert(ctx context.Context, brandID string, finding models.Finding) (threat.Result, error) {
	if finding.Domain == f.domain {
		return threat.Result{}, errors.New("database is locked")
	}
	return f.next.Upsert(ctx, brandID, finding)
}

func TestScan_ThreatWriteFailureDoesNotFailScan(t *testing.T) {
	h := newHarness(t, Options{Concurrency: 2}, syntheticCandidates(3))
	h.prober.hits["acme000.com"] = lookalikeHit()
	h.prober.hits["acme001.com"] = lookalikeHit()
	h.mgr.deps.Threats = &failingThreats{next: h.threats, domain: "acme000.com"}

	ctx := context.Background()
	s, err := h.mgr.Trigger(ctx, TriggerRequest{BrandID: h.brand.ID, Type: models.ScanFull})
	require.NoError(t, err)

	v := h.wait(t, s.ID)
	assert.Equal(t, models.StatusCompleted, v.Status)
	assert.Empty(t, v.Error)
	assert.EqualValues(t, 3, v.DomainsChecked)
	assert.EqualValues(t, 1, v.ThreatsFound)

	threats, err := h.store.ListThreats(ctx, models.ThreatFilter{BrandID: h.brand.ID})
	require.NoError(t, err)
	require.Len(t, threats, 1)
	assert.Equal(t, "acme001.com", threats[0].Domain)

	findings, err := h.store.ListFindings(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	require.Len(t, h.alerts.calls, 1)
	assert.Equal(t, "acme001.com", h.alerts.calls[0].domain)
}

func TestScheduler_RunsFullScanWhenLastFullIsStale(t *testing.T) {
	h := newHarness(t, Options{Concurrency: 1}, syntheticCandidates(1))
	ctx := context.Background()
	now := time.Now().UTC()

	stale := models.NewBrand("user-2", "Globex", "globex.com")
	fresh := models.NewBrand("user-3", "Initech", "initech.com")
	for _, b := range []*models.Brand{stale, fresh} {
		require.NoError(t, h.store.CreateBrand(ctx, b))
	}
	seedFull := func(brandID string, completed time.Time) {
		sc := models.NewScan(brandID, models.ScanFull, models.TriggerManual)
		sc.Status = models.StatusCompleted
		sc.StartedAt = &completed
		sc.CompletedAt = &completed
		require.NoError(t, h.store.SaveScan(ctx, sc))
	}
	seedFull(stale.ID, now.Add(-10*24*time.Hour))
	seedFull(fresh.ID, now.Add(-time.Hour))

	sched := &Scheduler{
		Manager:      h.mgr,
		Brands:       h.store,
		Interval:     time.Hour,
		FullInterval: 7 * 24 * time.Hour,
		Logger:       logging.Discard(),
		Now:          func() time.Time { return now },
	}
	assert.Equal(t, 3, sched.Tick(ctx))

	got := map[string]models.ScanType{}
	for _, b := range []*models.Brand{h.brand, stale, fresh} {
		scans, err := h.store.ListScans(ctx, b.ID)
		require.NoError(t, err)
		for _, sc := range scans {
			if sc.Trigger != models.TriggerScheduled {
				continue
			}
			h.wait(t, sc.ID)
			got[b.Domain] = sc.Type
		}
	}
	assert.Equal(t, map[string]models.ScanType{
		h.brand.Domain: models.ScanFull,
		"globex.com":   models.ScanFull,
		"initech.com":  models.ScanIncremental,
	}, got)
}

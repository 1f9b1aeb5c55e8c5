// Package scan owns the scan lifecycle: it generates candidates, probes them
// on a bounded worker pool, scores and upserts findings, and exposes live
// progress that pollers read and cancellation that callers request.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/probe"
	"github.com/hakim/brandwatch/internal/risk"
	"github.com/hakim/brandwatch/internal/threat"
)

// ErrUnknownScanType is returned by Trigger for an unrecognised scan type.
var ErrUnknownScanType = errors.New("unknown scan type")

// Store is the persistence the engine needs. Both the bbolt and postgres
// stores satisfy it.
type Store interface {
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	SaveScan(ctx context.Context, s *models.Scan) error
	GetScan(ctx context.Context, id string) (*models.Scan, error)
	ListScansByStatus(ctx context.Context, statuses ...models.ScanStatus) ([]*models.Scan, error)
	ListThreats(ctx context.Context, filter models.ThreatFilter) ([]*models.Threat, error)
	SaveFinding(ctx context.Context, scanID string, f models.Finding) error
}

// ThreatWriter reconciles findings with stored threats.
type ThreatWriter interface {
	Upsert(ctx context.Context, brandID string, f models.Finding) (threat.Result, error)
}

// Alerter is told about created or escalated threats.
type Alerter interface {
	Dispatch(ctx context.Context, brand *models.Brand, t *models.Threat, reason string) (bool, error)
}

// Prober probes one candidate.
type Prober interface {
	Probe(ctx context.Context, cand models.Candidate, ref *probe.Reference, hooks probe.Hooks) models.ProbeResult
}

// ReferenceFetcher fetches the brand's own site for the reference fingerprint.
type ReferenceFetcher interface {
	FetchURL(ctx context.Context, url string) (models.HTTPResult, error)
}

// Generator produces candidates for a seed.
type Generator func(seed permute.Seed, strategies []models.Strategy) ([]models.Candidate, error)

// Deps are the engine's collaborators. Alerts and Reference are optional.
type Deps struct {
	Store     Store
	Threats   ThreatWriter
	Alerts    Alerter
	Prober    Prober
	Reference ReferenceFetcher
	Scorer    *risk.Scorer
	Generate  Generator
	Logger    logrus.FieldLogger
}

// Options tune every scan the manager runs.
type Options struct {
	Concurrency      int
	MaxCandidates    int
	MaxDuration      time.Duration
	FlushInterval    time.Duration
	ReferenceTimeout time.Duration
	Strategies       []models.Strategy
	CountryCode      string
}

// TriggerRequest starts a scan.
type TriggerRequest struct {
	BrandID    string
	Type       models.ScanType
	Trigger    models.ScanTrigger
	Preset     string
	Strategies []string
}

// Manager runs scans in the background and tracks the active ones.
type Manager struct {
	deps Deps
	opts Options
	log  logrus.FieldLogger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[string]*run
}

// NewManager returns a manager. Call Shutdown to stop running scans.
func NewManager(deps Deps, opts Options) *Manager {
	if deps.Generate == nil {
		deps.Generate = permute.Generate
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Minute
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = models.AllStrategies
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		deps:    deps,
		opts:    opts,
		log:     deps.Logger,
		baseCtx: ctx,
		stop:    stop,
		active:  make(map[string]*run),
	}
}

// Trigger creates a pending scan and starts it in the background. It returns
// as soon as the scan record exists; the caller polls Status for progress.
func (m *Manager) Trigger(ctx context.Context, req TriggerRequest) (*models.Scan, error) {
	typ, ok := models.ParseScanType(string(req.Type))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScanType, req.Type)
	}
	if req.Trigger == "" {
		req.Trigger = models.TriggerManual
	}

	strategies := m.opts.Strategies
	if req.Preset != "" || len(req.Strategies) > 0 {
		var err error
		strategies, err = permute.ResolveStrategies(req.Preset, req.Strategies)
		if err != nil {
			return nil, err
		}
	}

	if _, err := m.deps.Store.GetBrand(ctx, req.BrandID); err != nil {
		return nil, err
	}

	s := models.NewScan(req.BrandID, typ, req.Trigger)
	s.Preset = req.Preset
	if err := m.deps.Store.SaveScan(ctx, s); err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}

	r := newRun(m, s, strategies)
	m.mu.Lock()
	m.active[s.ID] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.unregister(s.ID)
		r.execute()
	}()

	m.log.WithFields(logrus.Fields{
		"scan_id":  s.ID,
		"brand_id": s.BrandID,
		"type":     s.Type,
		"trigger":  s.Trigger,
	}).Info("scan triggered")

	cp := *s
	return &cp, nil
}

// Status returns the live view of a scan: from memory while it runs, from
// the store once it has finished.
func (m *Manager) Status(ctx context.Context, id string) (models.ScanStatusView, error) {
	if r := m.lookup(id); r != nil {
		return r.view(), nil
	}
	s, err := m.deps.Store.GetScan(ctx, id)
	if err != nil {
		return models.ScanStatusView{}, err
	}
	return s.View(), nil
}

// Cancel asks a running scan to stop. It is idempotent: cancelling a
// finished scan returns its current status without error.
func (m *Manager) Cancel(ctx context.Context, id string) (models.ScanStatusView, error) {
	if r := m.lookup(id); r != nil {
		r.cancel()
		return r.view(), nil
	}
	s, err := m.deps.Store.GetScan(ctx, id)
	if err != nil {
		return models.ScanStatusView{}, err
	}
	return s.View(), nil
}

// Wait blocks until the scan is no longer active or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) error {
	r := m.lookup(id)
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether this manager is running the scan.
func (m *Manager) Active(id string) bool {
	return m.lookup(id) != nil
}

// ActiveForBrand reports whether a scan for the brand is in progress.
func (m *Manager) ActiveForBrand(brandID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.active {
		if r.brandID == brandID {
			return true
		}
	}
	return false
}

// RecoverInterrupted marks scans left pending or running by a previous
// process as failed. Call it once at startup, before triggering scans.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	stale, err := m.deps.Store.ListScansByStatus(ctx, models.StatusPending, models.StatusRunning)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range stale {
		if m.lookup(s.ID) != nil {
			continue
		}
		now := time.Now().UTC()
		s.Status = models.StatusFailed
		s.Error = "interrupted by restart"
		s.CompletedAt = &now
		if err := m.deps.Store.SaveScan(ctx, s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Shutdown stops all running scans, which end as failed, and waits for
// them to persist their final state.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(id string) *run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[id]
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/probe"
	"github.com/hakim/brandwatch/internal/threat"
)

// run is one executing scan.
type run struct {
	m          *Manager
	brandID    string
	strategies []models.Strategy
	log        logrus.FieldLogger

	progress   progress
	cancelled  atomic.Bool
	dispatched atomic.Int64
	done       chan struct{}

	mu              sync.Mutex
	scan            *models.Scan
	cancelRequested bool
}

func newRun(m *Manager, s *models.Scan, strategies []models.Strategy) *run {
	cp := *s
	return &run{
		m:          m,
		brandID:    s.BrandID,
		strategies: strategies,
		log:        m.log.WithFields(logrus.Fields{"scan_id": s.ID, "brand_id": s.BrandID}),
		done:       make(chan struct{}),
		scan:       &cp,
	}
}

func (r *run) execute() {
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("scan panicked: %v", rec)
			r.fail(fmt.Sprintf("internal error: %v", rec))
		}
	}()

	hardCtx, cancel := context.WithTimeout(r.m.baseCtx, r.m.opts.MaxDuration)
	defer cancel()

	// ── 1. Structural preconditions ───────────────────────────────────────────
	brand, err := r.m.deps.Store.GetBrand(hardCtx, r.brandID)
	if err != nil {
		r.fail(fmt.Sprintf("load brand: %v", err))
		return
	}

	if !r.start() {
		return
	}

	// ── 2. Build the candidate list ───────────────────────────────────────────
	candidates, err := r.candidates(hardCtx, brand)
	if err != nil {
		r.fail(err.Error())
		return
	}
	r.setCandidates(len(candidates))
	r.log.WithField("candidates", len(candidates)).Info("scan running")

	// ── 3. Reference fingerprint of the brand's own site ──────────────────────
	ref := r.reference(hardCtx, brand)

	// ── 4. Probe on the worker pool, flushing progress as it moves ────────────
	stopFlush := r.flushPeriodically()
	r.probeAll(hardCtx, brand, candidates, ref)
	stopFlush()

	// ── 5. Final status ───────────────────────────────────────────────────────
	switch {
	case r.m.baseCtx.Err() != nil:
		r.fail("scan stopped by server shutdown")
	case errors.Is(hardCtx.Err(), context.DeadlineExceeded):
		r.fail(fmt.Sprintf("scan exceeded maximum duration of %s", r.m.opts.MaxDuration))
	default:
		r.transition(models.StatusCompleted, "")
	}
}

func (r *run) candidates(ctx context.Context, brand *models.Brand) ([]models.Candidate, error) {
	var cands []models.Candidate
	switch r.scan.Type {
	case models.ScanIncremental:
		threats, err := r.m.deps.Store.ListThreats(ctx, models.ThreatFilter{BrandID: brand.ID})
		if err != nil {
			return nil, fmt.Errorf("list threats: %w", err)
		}
		for _, t := range threats {
			if t.Status.Terminal() {
				continue
			}
			cands = append(cands, models.Candidate{Domain: t.Domain, Strategies: t.Strategies})
		}
	default:
		seed, err := permute.SeedForBrand(brand)
		if err != nil {
			return nil, err
		}
		if seed.CountryCode == "" {
			seed.CountryCode = r.m.opts.CountryCode
		}
		cands, err = r.generate(seed)
		if err != nil {
			return nil, fmt.Errorf("generate candidates: %w", err)
		}
	}

	if limit := r.m.opts.MaxCandidates; limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

// generate calls the generator, turning a panic into an error.
func (r *run) generate(seed permute.Seed) (cands []models.Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("generator panicked: %v", rec)
		}
	}()
	return r.m.deps.Generate(seed, r.strategies)
}

func (r *run) reference(ctx context.Context, brand *models.Brand) *probe.Reference {
	ref := &probe.Reference{Domain: brand.Domain, Owned: brand.OwnedDomains}
	if r.m.deps.Reference == nil {
		return ref
	}
	if d := r.m.opts.ReferenceTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	res, err := r.m.deps.Reference.FetchURL(ctx, "https://"+brand.Domain+"/")
	if err != nil || res.Fingerprint == nil {
		r.log.WithError(err).Warn("reference fingerprint unavailable, similarity signal is unknown")
		return ref
	}
	ref.Fingerprint = res.Fingerprint
	return ref
}

// probeAll drains the candidate queue with a fixed number of workers. Each
// worker checks for cancellation or the hard deadline before pulling the
// next candidate, so nothing new is dispatched once either happens.
func (r *run) probeAll(ctx context.Context, brand *models.Brand, candidates []models.Candidate, ref *probe.Reference) {
	work := make(chan models.Candidate, len(candidates))
	for _, c := range candidates {
		work <- c
	}
	close(work)

	workers := r.m.opts.Concurrency
	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < workers; i++ {
		p.Go(func() {
			for {
				if r.cancelled.Load() || ctx.Err() != nil {
					return
				}
				cand, ok := <-work
				if !ok {
					return
				}
				r.dispatched.Add(1)
				r.process(ctx, brand, cand, ref)
			}
		})
	}
	p.Wait()
}

func (r *run) process(ctx context.Context, brand *models.Brand, cand models.Candidate, ref *probe.Reference) {
	log := r.log.WithField("domain", cand.Domain)
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("candidate processing panicked: %v", rec)
		}
	}()

	res := r.m.deps.Prober.Probe(ctx, cand, ref, probe.Hooks{
		DNSDone:  r.progress.domainChecked,
		HTTPDone: r.progress.pageScanned,
	})
	// Results arriving after a cancel or the deadline are discarded.
	if r.cancelled.Load() || ctx.Err() != nil {
		return
	}

	assessment := r.m.deps.Scorer.Score(res)
	if !assessment.Interesting(r.m.deps.Scorer.Weights()) {
		return
	}
	finding := assessment.Finding(cand)

	if err := r.m.deps.Store.SaveFinding(r.m.baseCtx, r.scan.ID, finding); err != nil {
		log.WithError(err).Warn("failed to record finding")
	}

	result, err := r.m.deps.Threats.Upsert(r.m.baseCtx, brand.ID, finding)
	if err != nil {
		log.WithError(err).Error("threat write skipped after retries")
		return
	}
	if result.Outcome == threat.SkippedTerminal {
		log.WithField("status", result.Threat.Status).Debug("threat is closed, left untouched")
		return
	}
	r.progress.threatFound()

	log.WithFields(logrus.Fields{
		"score":    result.Threat.Score,
		"severity": result.Threat.Severity,
		"outcome":  result.Outcome,
	}).Info("threat recorded")

	if result.Escalated() && r.m.deps.Alerts != nil {
		reason := "new threat detected"
		if result.Outcome == threat.Updated {
			reason = fmt.Sprintf("severity raised from %s to %s", result.PreviousSeverity, result.Threat.Severity)
		}
		if _, err := r.m.deps.Alerts.Dispatch(r.m.baseCtx, brand, result.Threat, reason); err != nil {
			log.WithError(err).Warn("alert delivery failed")
		}
	}
}

// flushPeriodically persists live counters until the returned func is called.
func (r *run) flushPeriodically() func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.m.opts.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.flush()
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

func (r *run) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scan.Status != models.StatusRunning {
		return
	}
	r.scan.Counters = r.progress.snapshot()
	r.persistLocked()
}

// start moves pending to running. A cancel requested while pending is
// applied immediately after. It reports whether work should proceed.
func (r *run) start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.transitionLocked(models.StatusRunning, "") {
		return false
	}
	if r.cancelRequested {
		r.cancelLocked()
		return false
	}
	return true
}

func (r *run) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.scan.Status {
	case models.StatusPending:
		r.cancelRequested = true
	case models.StatusRunning:
		r.cancelLocked()
	}
}

func (r *run) cancelLocked() {
	r.cancelled.Store(true)
	r.transitionLocked(models.StatusCancelled, "cancelled by user")
	r.log.WithField("dispatched", r.dispatched.Load()).Info("scan cancelled")
}

func (r *run) fail(reason string) {
	if !r.transition(models.StatusFailed, reason) {
		return
	}
	r.log.WithField("reason", reason).Warn("scan failed")
}

func (r *run) transition(to models.ScanStatus, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(to, reason)
}

// transitionLocked applies a lifecycle move. The first terminal transition
// wins; later ones are ignored. Terminal transitions freeze the counters.
func (r *run) transitionLocked(to models.ScanStatus, reason string) bool {
	if !CanTransition(r.scan.Status, to) {
		return false
	}
	now := time.Now().UTC()
	r.scan.Status = to
	switch {
	case to == models.StatusRunning:
		r.scan.StartedAt = &now
	case to.Terminal():
		r.scan.Counters = r.progress.freeze()
		r.scan.Error = reason
		r.scan.CompletedAt = &now
	}
	r.persistLocked()
	if to == models.StatusCompleted {
		r.log.WithFields(logrus.Fields{
			"domains_checked": r.scan.Counters.DomainsChecked,
			"threats_found":   r.scan.Counters.ThreatsFound,
		}).Info("scan completed")
	}
	return true
}

func (r *run) setCandidates(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scan.Candidates = n
	r.persistLocked()
}

func (r *run) persistLocked() {
	if err := r.m.deps.Store.SaveScan(context.Background(), r.scan); err != nil {
		r.log.WithError(err).Error("failed to persist scan")
	}
}

func (r *run) view() models.ScanStatusView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.scan.View()
	if r.scan.Status == models.StatusRunning {
		c := r.progress.snapshot()
		v.DomainsChecked, v.PagesScanned, v.ThreatsFound = c.DomainsChecked, c.PagesScanned, c.ThreatsFound
	}
	return v
}

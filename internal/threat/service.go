// Package threat reconciles scored findings with stored threats and applies
// analyst status changes. Both paths go through the same per-key lock and
// the store's atomic read-modify-write, so a scan can never undo a status
// an analyst just set.
package threat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/models"
)

var (
	// ErrInvalidTransition is returned for a status change the workflow does not allow.
	ErrInvalidTransition = errors.New("invalid threat status transition")
	// ErrTerminal is returned when changing a resolved or false_positive threat
	// without reopening it first.
	ErrTerminal = errors.New("threat is in a terminal status")
)

// Store is the persistence the service needs.
type Store interface {
	GetThreat(ctx context.Context, id string) (*models.Threat, error)
	UpdateThreatByKey(ctx context.Context, brandID, domain string, fn func(cur *models.Threat) (*models.Threat, error)) error
}

// Outcome says what an upsert did.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
	SkippedTerminal
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case SkippedTerminal:
		return "skipped_terminal"
	}
	return "unchanged"
}

// Result describes one upsert.
type Result struct {
	Threat           *models.Threat
	Outcome          Outcome
	PreviousSeverity models.Severity
}

// Escalated reports whether the upsert created the threat or raised its severity.
func (r Result) Escalated() bool {
	switch r.Outcome {
	case Created:
		return true
	case Updated:
		return r.Threat.Severity.Rank() > r.PreviousSeverity.Rank()
	}
	return false
}

// RetryPolicy bounds persistence retries.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// Service owns threat writes.
type Service struct {
	store  Store
	locks  *keyLock
	retry  RetryPolicy
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewService returns a service writing through store.
func NewService(store Store, retry RetryPolicy, logger logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		locks:  newKeyLock(),
		retry:  retry,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func lockKey(brandID, domain string) string {
	return brandID + "\x00" + domain
}

// Upsert records a finding. A new (brand, domain) pair creates a threat in
// status new. An existing live threat has its score, severity, type and
// detected_at refreshed when the score or type changed. Terminal threats are
// never modified. Transient store errors are retried with exponential
// backoff; the last error is returned once retries run out.
func (s *Service) Upsert(ctx context.Context, brandID string, f models.Finding) (Result, error) {
	domain := models.NormalizeDomain(f.Domain)
	f.Domain = domain
	key := lockKey(brandID, domain)

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var res Result
	op := func() error {
		return s.store.UpdateThreatByKey(ctx, brandID, domain, func(cur *models.Threat) (*models.Threat, error) {
			now := s.now()
			switch {
			case cur == nil:
				t := models.NewThreat(brandID, f, now)
				res = Result{Threat: t, Outcome: Created}
				return t, nil
			case cur.Status.Terminal():
				res = Result{Threat: cur, Outcome: SkippedTerminal, PreviousSeverity: cur.Severity}
				return nil, nil
			case cur.Score == f.Score && cur.Type == f.Type:
				res = Result{Threat: cur, Outcome: Unchanged, PreviousSeverity: cur.Severity}
				return nil, nil
			}

			next := *cur
			next.Score = f.Score
			next.Severity = models.SeverityForScore(f.Score)
			next.Type = f.Type
			next.Signals = f.Signals
			next.Strategies = mergeStrategies(cur.Strategies, f.Strategies)
			next.DetectedAt = now
			next.UpdatedAt = now
			res = Result{Threat: &next, Outcome: Updated, PreviousSeverity: cur.Severity}
			return &next, nil
		})
	}

	if err := backoff.Retry(op, s.backoff(ctx)); err != nil {
		return Result{}, fmt.Errorf("upsert threat %s: %w", domain, err)
	}
	return res, nil
}

func (s *Service) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if s.retry.InitialBackoff > 0 {
		eb.InitialInterval = s.retry.InitialBackoff
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.retry.MaxRetries)), ctx)
}

func mergeStrategies(a, b []models.Strategy) []models.Strategy {
	out := append([]models.Strategy(nil), a...)
	for _, s := range b {
		found := false
		for _, have := range out {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

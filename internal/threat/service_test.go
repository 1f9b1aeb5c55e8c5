package threat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/models"
)

// memStore is an in-memory Store. failures makes the next n writes fail.
type memStore struct {
	mu       sync.Mutex
	byID     map[string]*models.Threat
	byKey    map[string]string
	failures int
	writes   int
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*models.Threat{}, byKey: map[string]string{}}
}

func (m *memStore) GetThreat(_ context.Context, id string) (*models.Threat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateThreatByKey(_ context.Context, brandID, domain string, fn func(*models.Threat) (*models.Threat, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("connection reset")
	}
	var cur *models.Threat
	if id, ok := m.byKey[brandID+"/"+domain]; ok {
		cp := *m.byID[id]
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}
	cp := *next
	m.byID[next.ID] = &cp
	m.byKey[brandID+"/"+domain] = next.ID
	m.writes++
	return nil
}

func newTestService(store Store) *Service {
	return NewService(store, RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond}, logging.Discard())
}

func finding(domain string, score int) models.Finding {
	return models.Finding{
		Domain:     domain,
		Type:       models.ThreatTyposquatDomain,
		Score:      score,
		Severity:   models.SeverityForScore(score),
		Strategies: []models.Strategy{models.StrategyOmission},
	}
}

func TestUpsert_IdempotentOnUnchangedFinding(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	first, err := svc.Upsert(ctx, "b1", finding("acm.com", 50))
	require.NoError(t, err)
	assert.Equal(t, Created, first.Outcome)
	assert.Equal(t, models.ThreatNew, first.Threat.Status)
	assert.True(t, first.Escalated())

	second, err := svc.Upsert(ctx, "b1", finding("acm.com", 50))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, second.Outcome)
	assert.Equal(t, first.Threat.ID, second.Threat.ID)
	assert.Equal(t, first.Threat.DetectedAt, second.Threat.DetectedAt)

	assert.Len(t, store.byID, 1)
	assert.Equal(t, 1, store.writes)
}

func TestUpsert_EscalationUpdatesScoreAndSeverity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore())

	_, err := svc.Upsert(ctx, "b1", finding("acm.com", 40))
	require.NoError(t, err)

	res, err := svc.Upsert(ctx, "b1", finding("ACM.com.", 85))
	require.NoError(t, err)
	assert.Equal(t, Updated, res.Outcome)
	assert.Equal(t, 85, res.Threat.Score)
	assert.Equal(t, models.SeverityCritical, res.Threat.Severity)
	assert.Equal(t, models.SeverityMedium, res.PreviousSeverity)
	assert.True(t, res.Escalated())

	res, err = svc.Upsert(ctx, "b1", finding("acm.com", 70))
	require.NoError(t, err)
	assert.Equal(t, Updated, res.Outcome)
	assert.False(t, res.Escalated())
}

func TestUpsert_TerminalIsSticky(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	created, err := svc.Upsert(ctx, "b1", finding("acm.com", 50))
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, created.Threat.ID, models.ThreatFalsePositive)
	require.NoError(t, err)

	res, err := svc.Upsert(ctx, "b1", finding("acm.com", 95))
	require.NoError(t, err)
	assert.Equal(t, SkippedTerminal, res.Outcome)
	assert.False(t, res.Escalated())

	stored, err := store.GetThreat(ctx, created.Threat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThreatFalsePositive, stored.Status)
	assert.Equal(t, 50, stored.Score)
}

func TestUpsert_RetriesTransientFailures(t *testing.T) {
	store := newMemStore()
	store.failures = 2
	res, err := newTestService(store).Upsert(context.Background(), "b1", finding("acm.com", 50))
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
}

func TestUpsert_GivesUpAfterMaxRetries(t *testing.T) {
	store := newMemStore()
	store.failures = 10
	_, err := newTestService(store).Upsert(context.Background(), "b1", finding("acm.com", 50))
	assert.Error(t, err)
	assert.Equal(t, 6, store.failures)
	assert.Empty(t, store.byID)
}

func TestUpsert_ConcurrentSameKeyCreatesOne(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Upsert(context.Background(), "b1", finding("acm.com", 50))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, store.byID, 1)
}

func TestWorkflow_Transitions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore())

	created, err := svc.Upsert(ctx, "b1", finding("acm.com", 50))
	require.NoError(t, err)
	id := created.Threat.ID

	_, err = svc.SetStatus(ctx, id, models.ThreatTakedownRequested)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.SetStatus(ctx, id, models.ThreatReviewing)
	require.NoError(t, err)
	assert.Equal(t, models.ThreatReviewing, got.Status)

	got, err = svc.SetStatus(ctx, id, models.ThreatTakedownRequested)
	require.NoError(t, err)
	assert.Equal(t, models.ThreatTakedownRequested, got.Status)

	_, err = svc.SetStatus(ctx, id, models.ThreatResolved)
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, id, models.ThreatReviewing)
	assert.ErrorIs(t, err, ErrTerminal)

	got, err = svc.Reopen(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ThreatReviewing, got.Status)

	_, err = svc.Reopen(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.ThreatNew, models.ThreatResolved))
	assert.False(t, CanTransition(models.ThreatNew, models.ThreatNew))
	assert.False(t, CanTransition(models.ThreatResolved, models.ThreatReviewing))
	assert.False(t, CanTransition(models.ThreatFalsePositive, models.ThreatNew))
}

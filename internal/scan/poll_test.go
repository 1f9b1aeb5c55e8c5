package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/models"
)

func sequence(statuses ...models.ScanStatus) (FetchFunc, *int) {
	calls := 0
	return func(context.Context) (models.ScanStatusView, error) {
		s := statuses[len(statuses)-1]
		if calls < len(statuses) {
			s = statuses[calls]
		}
		calls++
		return models.ScanStatusView{ID: "s1", Status: s, DomainsChecked: int64(calls)}, nil
	}, &calls
}

func TestPoll_StopsAtTerminal(t *testing.T) {
	fetch, calls := sequence(models.StatusPending, models.StatusRunning, models.StatusCompleted)
	var seen []models.ScanStatus
	v, err := Poll(context.Background(), time.Millisecond, 10, fetch, func(v models.ScanStatusView) {
		seen = append(seen, v.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, v.Status)
	assert.Equal(t, 3, *calls)
	assert.Len(t, seen, 3)
}

func TestPoll_Exhausted(t *testing.T) {
	fetch, calls := sequence(models.StatusRunning)
	v, err := Poll(context.Background(), time.Millisecond, 4, fetch, nil)
	assert.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 4, *calls)
	assert.Equal(t, models.StatusRunning, v.Status)
	assert.EqualValues(t, 4, v.DomainsChecked)
}

func TestPoll_NonPositiveAttemptsStillFetchesOnce(t *testing.T) {
	for _, n := range []int{0, -3} {
		fetch, calls := sequence(models.StatusCompleted)
		v, err := Poll(context.Background(), time.Millisecond, n, fetch, nil)
		require.NoError(t, err, "maxAttempts=%d", n)
		assert.Equal(t, models.StatusCompleted, v.Status)
		assert.Equal(t, 1, *calls)
	}

	fetch, calls := sequence(models.StatusRunning)
	v, err := Poll(context.Background(), time.Millisecond, 0, fetch, nil)
	assert.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, "s1", v.ID)
}

func TestPoll_FetchError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := Poll(context.Background(), time.Millisecond, 3, func(context.Context) (models.ScanStatusView, error) {
		return models.ScanStatusView{}, boom
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch, _ := sequence(models.StatusRunning)
	cancel()
	_, err := Poll(ctx, time.Hour, 3, fetch, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.ScanStatus
		want     bool
	}{
		{models.StatusPending, models.StatusRunning, true},
		{models.StatusPending, models.StatusFailed, true},
		{models.StatusPending, models.StatusCancelled, false},
		{models.StatusRunning, models.StatusCompleted, true},
		{models.StatusRunning, models.StatusCancelled, true},
		{models.StatusCompleted, models.StatusRunning, false},
		{models.StatusCancelled, models.StatusCompleted, false},
		{models.StatusFailed, models.StatusRunning, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestProgress_FreezeDropsLateIncrements(t *testing.T) {
	var p progress
	p.domainChecked()
	p.pageScanned()
	got := p.freeze()
	p.domainChecked()
	p.threatFound()
	assert.Equal(t, models.Counters{DomainsChecked: 1, PagesScanned: 1}, got)
	assert.Equal(t, got, p.snapshot())
}

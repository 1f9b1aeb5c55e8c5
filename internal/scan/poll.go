package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hakim/brandwatch/internal/models"
)

// ErrPollExhausted is returned when a poller gives up before the scan
// reached a terminal status. The scan itself keeps running.
var ErrPollExhausted = errors.New("scan still running after maximum poll attempts")

// FetchFunc returns the current status of a scan.
type FetchFunc func(ctx context.Context) (models.ScanStatusView, error)

// Poll calls fetch every interval until the scan is terminal or
// maxAttempts fetches have been made. onUpdate, if set, sees every fetched
// view. The last view is returned alongside ErrPollExhausted. At least one
// fetch is always made.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, fetch FetchFunc, onUpdate func(models.ScanStatusView)) (models.ScanStatusView, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var last models.ScanStatusView
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		view, err := fetch(ctx)
		if err != nil {
			return last, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		last = view
		if onUpdate != nil {
			onUpdate(view)
		}
		if view.Status.Terminal() {
			return view, nil
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
	return last, ErrPollExhausted
}

package scan

import "github.com/hakim/brandwatch/internal/models"

// transitions is the scan lifecycle. Terminal states have no entry, so
// nothing leaves them. A pending scan may fail before it starts (missing
// brand); cancellation is only reachable from running.
var transitions = map[models.ScanStatus][]models.ScanStatus{
	models.StatusPending: {models.StatusRunning, models.StatusFailed},
	models.StatusRunning: {models.StatusCompleted, models.StatusFailed, models.StatusCancelled},
}

// CanTransition reports whether a scan may move from one status to another.
func CanTransition(from, to models.ScanStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

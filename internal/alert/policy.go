// Package alert decides whether a threat should raise an alert and hands it
// to the delivery channels a user enabled.
package alert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hakim/brandwatch/internal/models"
)

// ErrUnknownThreshold is returned when a threshold or legacy severity name
// is not recognised.
var ErrUnknownThreshold = errors.New("unknown alert threshold")

// Evaluate reports whether a threat of the given severity passes the
// threshold. It is total: an unknown threshold or severity never fires.
func Evaluate(sev models.Severity, threshold models.AlertThreshold) bool {
	switch threshold {
	case models.ThresholdAll:
		return sev.Rank() > 0
	case models.ThresholdHighCritical:
		return sev == models.SeverityHigh || sev == models.SeverityCritical
	case models.ThresholdCritical:
		return sev == models.SeverityCritical
	}
	return false
}

// ParseThreshold validates a threshold name.
func ParseThreshold(s string) (models.AlertThreshold, error) {
	switch t := models.AlertThreshold(strings.ToLower(strings.TrimSpace(s))); t {
	case models.ThresholdAll, models.ThresholdHighCritical, models.ThresholdCritical:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownThreshold, s)
}

// MigrateLegacy converts the older list-of-severities setting into a
// threshold. The lowest listed severity decides: low or medium means all,
// high means high_critical, critical alone means critical. An empty list
// maps to critical.
func MigrateLegacy(severities []string) (models.AlertThreshold, error) {
	lowest := 0
	for _, s := range severities {
		sev, ok := models.ParseSeverity(strings.ToLower(strings.TrimSpace(s)))
		if !ok {
			return "", fmt.Errorf("%w: legacy severity %q", ErrUnknownThreshold, s)
		}
		if lowest == 0 || sev.Rank() < lowest {
			lowest = sev.Rank()
		}
	}

	switch {
	case lowest == 0:
		return models.ThresholdCritical, nil
	case lowest <= models.SeverityMedium.Rank():
		return models.ThresholdAll, nil
	case lowest == models.SeverityHigh.Rank():
		return models.ThresholdHighCritical, nil
	default:
		return models.ThresholdCritical, nil
	}
}

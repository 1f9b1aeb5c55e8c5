package models

import (
	"time"

	"github.com/google/uuid"
)

// Signal is one scored contribution kept as evidence on a threat.
type Signal struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
	Detail string  `json:"detail,omitempty"`
}

// Threat is a durable finding. At most one live threat exists per
// (BrandID, Domain).
type Threat struct {
	ID         string       `json:"id"`
	BrandID    string       `json:"brand_id"`
	Domain     string       `json:"domain"`
	URL        string       `json:"url"`
	Type       ThreatType   `json:"type"`
	Severity   Severity     `json:"severity"`
	Score      int          `json:"score"`
	Status     ThreatStatus `json:"status"`
	Strategies []Strategy   `json:"strategies,omitempty"`
	Signals    []Signal     `json:"signals,omitempty"`
	DetectedAt time.Time    `json:"detected_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewThreat builds a threat in status new from a scored finding.
func NewThreat(brandID string, f Finding, now time.Time) *Threat {
	return &Threat{
		ID:         uuid.New().String(),
		BrandID:    brandID,
		Domain:     f.Domain,
		URL:        "https://" + f.Domain,
		Type:       f.Type,
		Severity:   SeverityForScore(f.Score),
		Score:      f.Score,
		Status:     ThreatNew,
		Strategies: f.Strategies,
		Signals:    f.Signals,
		DetectedAt: now,
		UpdatedAt:  now,
	}
}

// ThreatFilter narrows a threat listing. Empty fields match everything.
type ThreatFilter struct {
	BrandID  string
	Severity Severity
	Status   ThreatStatus
}

// Match reports whether t passes the filter.
func (f ThreatFilter) Match(t *Threat) bool {
	if f.BrandID != "" && t.BrandID != f.BrandID {
		return false
	}
	if f.Severity != "" && t.Severity != f.Severity {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// Finding is a scored candidate above the minimum-interest floor, recorded
// against the scan that observed it.
type Finding struct {
	Domain     string     `json:"domain"`
	Type       ThreatType `json:"type"`
	Score      int        `json:"score"`
	Severity   Severity   `json:"severity"`
	Strategies []Strategy `json:"strategies,omitempty"`
	Signals    []Signal   `json:"signals,omitempty"`
}

// Package diff computes the delta between the findings of two scans of the
// same brand: which lookalike domains are new, which disappeared, and which
// moved up or down a severity tier.
package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/hakim/brandwatch/internal/models"
)

// FindingSource reads the findings recorded against a scan.
type FindingSource interface {
	ListFindings(ctx context.Context, scanID string) ([]models.Finding, error)
}

// ScanSnapshot holds one scan and the findings it recorded.
type ScanSnapshot struct {
	Scan     *models.Scan
	Findings []models.Finding
}

// LoadSnapshot reads the findings of s. A scan without findings yields an
// empty snapshot, not an error.
func LoadSnapshot(ctx context.Context, src FindingSource, s *models.Scan) (*ScanSnapshot, error) {
	findings, err := src.ListFindings(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("loading findings for scan %s: %w", s.ID, err)
	}
	return &ScanSnapshot{Scan: s, Findings: findings}, nil
}

// Change pairs a domain's finding in the previous and current scans.
type Change struct {
	Domain   string
	Previous models.Finding
	Current  models.Finding
}

// DiffResult holds the delta between a current and a previous snapshot. All
// slices are non-nil and sorted by domain so output is deterministic.
type DiffResult struct {
	New         []models.Finding
	Disappeared []models.Finding
	Escalated   []Change
	DeEscalated []Change
	Unchanged   int

	CurrentCount  int
	PreviousCount int
}

// Empty reports whether nothing changed between the two scans.
func (d *DiffResult) Empty() bool {
	return len(d.New) == 0 && len(d.Disappeared) == 0 &&
		len(d.Escalated) == 0 && len(d.DeEscalated) == 0
}

// ComputeDiff calculates the delta between current and previous. Pass an
// empty snapshot for the "no previous scan" case. Domains are compared by
// severity tier; a score change inside the same tier counts as unchanged.
func ComputeDiff(current, previous *ScanSnapshot) *DiffResult {
	dr := &DiffResult{
		New:           []models.Finding{},
		Disappeared:   []models.Finding{},
		Escalated:     []Change{},
		DeEscalated:   []Change{},
		CurrentCount:  len(current.Findings),
		PreviousCount: len(previous.Findings),
	}

	prev := byDomain(previous.Findings)
	curr := byDomain(current.Findings)

	for domain, f := range curr {
		p, existed := prev[domain]
		if !existed {
			dr.New = append(dr.New, f)
			continue
		}
		switch c := (Change{Domain: domain, Previous: p, Current: f}); {
		case f.Severity.Rank() > p.Severity.Rank():
			dr.Escalated = append(dr.Escalated, c)
		case f.Severity.Rank() < p.Severity.Rank():
			dr.DeEscalated = append(dr.DeEscalated, c)
		default:
			dr.Unchanged++
		}
	}

	for domain, f := range prev {
		if _, exists := curr[domain]; !exists {
			dr.Disappeared = append(dr.Disappeared, f)
		}
	}

	sortFindings(dr.New)
	sortFindings(dr.Disappeared)
	sortChanges(dr.Escalated)
	sortChanges(dr.DeEscalated)
	return dr
}

// byDomain indexes findings by domain. If a scan recorded a domain twice the
// later finding wins.
func byDomain(fs []models.Finding) map[string]models.Finding {
	m := make(map[string]models.Finding, len(fs))
	for _, f := range fs {
		m[models.NormalizeDomain(f.Domain)] = f
	}
	return m
}

func sortFindings(fs []models.Finding) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Domain < fs[j].Domain })
}

func sortChanges(cs []Change) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Domain < cs[j].Domain })
}

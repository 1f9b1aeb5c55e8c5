package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hakim/brandwatch/internal/models"
)

// BuildThreatReport renders the markdown threat report for a brand: a
// severity summary, the live threats grouped by tier, closed threats, and
// the recent scan history.
func BuildThreatReport(brand *models.Brand, threats []*models.Threat, scans []*models.Scan, at time.Time) string {
	var b strings.Builder

	b.WriteString("# Brand Threat Report\n\n")
	b.WriteString(fmt.Sprintf("**Brand:** %s (%s)\n", brand.Name, brand.Domain))
	b.WriteString(fmt.Sprintf("**Date:** %s\n", at.UTC().Format("2006-01-02 15:04:05 UTC")))

	live, closed := splitByStatus(threats)
	b.WriteString(fmt.Sprintf("**Live threats:** %d | **Closed:** %d\n\n", len(live), len(closed)))

	writeSeveritySummary(&b, live)

	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		writeSeveritySection(&b, sev, filterSeverity(live, sev))
	}

	b.WriteString("## Closed\n\n")
	if len(closed) > 0 {
		b.WriteString("| Domain | Status | Severity | Score |\n")
		b.WriteString("|--------|--------|----------|-------|\n")
		for _, t := range closed {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", t.Domain, t.Status, t.Severity, t.Score))
		}
	} else {
		b.WriteString("None.\n")
	}
	b.WriteString("\n")

	writeScanHistory(&b, scans)
	return b.String()
}

func writeSeveritySummary(b *strings.Builder, live []*models.Threat) {
	counts := make(map[models.Severity]int)
	for _, t := range live {
		counts[t.Severity]++
	}
	b.WriteString("## Summary\n\n")
	b.WriteString("| Severity | Count |\n")
	b.WriteString("|----------|-------|\n")
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		b.WriteString(fmt.Sprintf("| %s | %d |\n", sev, counts[sev]))
	}
	b.WriteString("\n")
}

// writeSeveritySection renders one tier. Skipped when empty.
func writeSeveritySection(b *strings.Builder, sev models.Severity, threats []*models.Threat) {
	if len(threats) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("## %s (%d)\n\n", titleCase(string(sev)), len(threats)))
	b.WriteString("| Domain | Type | Score | Status | Evidence |\n")
	b.WriteString("|--------|------|-------|--------|----------|\n")
	for _, t := range threats {
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n",
			t.Domain, t.Type, t.Score, t.Status, signalSummary(t.Signals)))
	}
	b.WriteString("\n")
}

func writeScanHistory(b *strings.Builder, scans []*models.Scan) {
	b.WriteString("## Recent Scans\n\n")
	if len(scans) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	b.WriteString("| Started | Type | Trigger | Status | Checked | Threats |\n")
	b.WriteString("|---------|------|---------|--------|---------|---------|\n")
	for _, s := range scans {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %d |\n",
			formatTime(s.StartedAt), s.Type, s.Trigger, s.Status,
			s.Counters.DomainsChecked, s.Counters.ThreatsFound))
	}
	b.WriteString("\n")
}

// splitByStatus separates live threats from terminal ones, each sorted by
// score descending then domain.
func splitByStatus(threats []*models.Threat) (live, closed []*models.Threat) {
	for _, t := range threats {
		if t.Status.Terminal() {
			closed = append(closed, t)
		} else {
			live = append(live, t)
		}
	}
	sortThreats(live)
	sortThreats(closed)
	return live, closed
}

func filterSeverity(threats []*models.Threat, sev models.Severity) []*models.Threat {
	var out []*models.Threat
	for _, t := range threats {
		if t.Severity == sev {
			out = append(out, t)
		}
	}
	return out
}

func sortThreats(ts []*models.Threat) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Score != ts[j].Score {
			return ts[i].Score > ts[j].Score
		}
		return ts[i].Domain < ts[j].Domain
	})
}

// signalSummary lists the signal details that contributed points.
func signalSummary(signals []models.Signal) string {
	var parts []string
	for _, s := range signals {
		if s.Points <= 0 {
			continue
		}
		if s.Detail != "" {
			parts = append(parts, s.Detail)
		} else {
			parts = append(parts, s.Name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hakim/brandwatch/internal/diff"
	"github.com/hakim/brandwatch/internal/models"
)

// BuildDiffReport renders the markdown delta between two scans of a brand.
func BuildDiffReport(result *diff.DiffResult, current, previous *models.Scan, at time.Time) string {
	var b strings.Builder

	b.WriteString("# Scan Diff Report\n\n")
	b.WriteString(fmt.Sprintf("**Date:** %s\n", at.UTC().Format("2006-01-02 15:04:05 UTC")))
	b.WriteString(fmt.Sprintf("**Current scan:** %s (%s)\n", current.ID, formatTime(current.StartedAt)))
	if previous != nil {
		b.WriteString(fmt.Sprintf("**Previous scan:** %s (%s)\n", previous.ID, formatTime(previous.StartedAt)))
	}
	b.WriteString("\n")

	if result.Empty() {
		b.WriteString("No changes detected.\n")
		return b.String()
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Previous | Current | Change |\n")
	b.WriteString("|----------|---------|--------|\n")
	b.WriteString(fmt.Sprintf("| %d | %d | %s |\n\n",
		result.PreviousCount, result.CurrentCount, formatChange(len(result.New), len(result.Disappeared))))

	writeFindingList(&b, fmt.Sprintf("New Domains (+%d)", len(result.New)), result.New)
	writeFindingList(&b, fmt.Sprintf("Disappeared (-%d)", len(result.Disappeared)), result.Disappeared)
	writeChangeTable(&b, fmt.Sprintf("Escalated (%d)", len(result.Escalated)), result.Escalated)
	writeChangeTable(&b, fmt.Sprintf("De-escalated (%d)", len(result.DeEscalated)), result.DeEscalated)

	return b.String()
}

// writeFindingList renders a findings section. Skipped when empty.
func writeFindingList(b *strings.Builder, title string, fs []models.Finding) {
	if len(fs) == 0 {
		return
	}
	b.WriteString("## " + title + "\n\n")
	for _, f := range fs {
		b.WriteString(fmt.Sprintf("- %s (%s, score %d, %s)\n", f.Domain, f.Severity, f.Score, f.Type))
	}
	b.WriteString("\n")
}

// writeChangeTable renders severity moves. Skipped when empty.
func writeChangeTable(b *strings.Builder, title string, cs []diff.Change) {
	if len(cs) == 0 {
		return
	}
	b.WriteString("## " + title + "\n\n")
	b.WriteString("| Domain | Before | After |\n")
	b.WriteString("|--------|--------|-------|\n")
	for _, c := range cs {
		b.WriteString(fmt.Sprintf("| %s | %s (%d) | %s (%d) |\n",
			c.Domain, c.Previous.Severity, c.Previous.Score, c.Current.Severity, c.Current.Score))
	}
	b.WriteString("\n")
}

// formatChange returns "+3 / -1", or "none" when nothing was added or removed.
func formatChange(added, removed int) string {
	if added == 0 && removed == 0 {
		return "none"
	}
	parts := make([]string, 0, 2)
	if added > 0 {
		parts = append(parts, fmt.Sprintf("+%d", added))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d", removed))
	}
	return strings.Join(parts, " / ")
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hakim/brandwatch/internal/models"
)

var severityColor = map[models.Severity]lipgloss.Color{
	models.SeverityCritical: lipgloss.Color("196"),
	models.SeverityHigh:     lipgloss.Color("208"),
	models.SeverityMedium:   lipgloss.Color("220"),
	models.SeverityLow:      lipgloss.Color("250"),
}

// WriteThreatTable renders threats as a terminal table.
func WriteThreatTable(w io.Writer, threats []*models.Threat, noColor bool) {
	if len(threats) == 0 {
		fmt.Fprintln(w, "No threats recorded.")
		return
	}

	headers := []string{"ID", "Domain", "Severity", "Score", "Type", "Status"}
	rows := make([][]string, 0, len(threats))
	for _, t := range threats {
		rows = append(rows, []string{
			shortID(t.ID),
			truncate(t.Domain, 40),
			string(t.Severity),
			fmt.Sprintf("%d", t.Score),
			string(t.Type),
			string(t.Status),
		})
	}

	if noColor {
		writeSimpleTable(w, headers, rows)
		return
	}

	tbl := styledTable(headers, func(row, col int) lipgloss.Style {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		if col == 2 && row >= 0 && row < len(rows) {
			if c, ok := severityColor[models.Severity(rows[row][2])]; ok {
				style = style.Foreground(c).Bold(true)
			}
		}
		return style
	})
	for _, row := range rows {
		tbl.Row(row...)
	}
	fmt.Fprintln(w, tbl.Render())
}

// WriteScanTable renders scan history as a terminal table.
func WriteScanTable(w io.Writer, scans []*models.Scan, noColor bool) {
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans recorded.")
		return
	}

	headers := []string{"ID", "Started", "Type", "Trigger", "Status", "Checked", "Pages", "Threats"}
	rows := make([][]string, 0, len(scans))
	for _, s := range scans {
		rows = append(rows, []string{
			shortID(s.ID),
			formatTime(s.StartedAt),
			string(s.Type),
			string(s.Trigger),
			string(s.Status),
			fmt.Sprintf("%d", s.Counters.DomainsChecked),
			fmt.Sprintf("%d", s.Counters.PagesScanned),
			fmt.Sprintf("%d", s.Counters.ThreatsFound),
		})
	}

	if noColor {
		writeSimpleTable(w, headers, rows)
		return
	}

	tbl := styledTable(headers, func(row, col int) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	})
	for _, row := range rows {
		tbl.Row(row...)
	}
	fmt.Fprintln(w, tbl.Render())
}

func styledTable(headers []string, cell func(row, col int) lipgloss.Style) *table.Table {
	return table.New().
		Headers(headers...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			return cell(row, col)
		})
}

func writeSimpleTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}

	writeRow(headers)
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		writeRow(row)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

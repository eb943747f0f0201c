package watch

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// newJobTable builds the scan job table.
func newJobTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Tool", Width: 18},
			{Title: "Target", Width: 28},
			{Title: "ID", Width: 10},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// jobTableRows converts job summaries into table rows, newest first.
func jobTableRows(jobs []jobRow) []table.Row {
	rows := make([]table.Row, 0, len(jobs))
	for _, j := range jobs {
		id := j.JobID
		if len(id) > 8 {
			id = id[:8]
		}
		target := j.Target
		if len(target) > 28 {
			target = target[:25] + "..."
		}
		duration := "-"
		if j.DurationSeconds != nil {
			duration = fmt.Sprintf("%.1fs", *j.DurationSeconds)
		}
		rows = append(rows, table.Row{statusGlyph(j.Status), j.Tool, target, id, duration})
	}
	return rows
}

func statusGlyph(status string) string {
	switch status {
	case "running":
		return "▶"
	case "completed":
		return "✓"
	case "failed":
		return "✗"
	case "cancelled":
		return "⊘"
	default: // pending
		return "…"
	}
}

func renderJobs(t table.Model, theme Theme, width int) string {
	innerWidth := width - 4
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("SCAN JOBS"),
		t.View(),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState is the monitor's view of the gateway, refreshed by /healthz
// polling and marked disconnected when the event stream drops.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	ToolsLoaded   int
	ActiveJobs    int
	Connected     bool
	LastCheck     time.Time
}

// condition maps the health state to the label and icon shown in the header.
func (h HealthState) condition(theme Theme) (string, string) {
	switch {
	case !h.Connected:
		return theme.StatusFailed.Render("CONNECTING"), "🔌"
	case h.Status != "ok" && h.Status != "":
		return theme.StatusFailed.Render("DEGRADED"), "⚠️"
	default:
		return theme.StatusOK.Render("HEALTHY"), "✅"
	}
}

// renderHeader draws the bordered status panel: title row with heartbeat and
// wall clock, gateway vitals, and the event activity pulse.
func renderHeader(health HealthState, hb Heartbeat, pulse EventPulse, theme Theme, width int) string {
	innerWidth := width - 4

	statusText, statusIcon := health.condition(theme)

	title := fmt.Sprintf(" SCOPEGW WATCH %s", theme.Highlight.Render(hb.Frame()))
	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleLine := spreadAcross(title, clock+" ", innerWidth)

	vitals := fmt.Sprintf(" %s %s  ⏱ %s  Active: %d  Tools: %d",
		statusIcon, statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.ActiveJobs,
		health.ToolsLoaded,
	)

	lastEvent := "never"
	if !pulse.LastEvent().IsZero() {
		lastEvent = fmt.Sprintf("%s ago", time.Since(pulse.LastEvent()).Round(time.Second))
	}
	activity := fmt.Sprintf(" Last event: %s %s", lastEvent, pulse.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, vitals, activity)
	return theme.Border.Width(innerWidth).Render(content)
}

// spreadAcross left-aligns left and right-aligns right inside width,
// keeping at least one space of separation on narrow terminals.
func spreadAcross(left, right string, width int) string {
	pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 3
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

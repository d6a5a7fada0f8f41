package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC857"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96E6A1")).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	stateStyles = map[models.WorkerState]lipgloss.Style{
		models.StateIdle:         lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1")),
		models.StateBusy:         lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857")),
		models.StateInitializing: lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1")),
		models.StateError:        lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		models.StateStopped:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}

	eventTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	eventTypeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1"))
	eventErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("conductor"))
	b.WriteString("  ")
	b.WriteString(subtitleStyle.Render("task dispatch"))
	b.WriteString("\n\n")

	b.WriteString(d.summaryLine())
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("WORKERS"))
	b.WriteString("\n")
	if len(d.status.Workers) == 0 {
		b.WriteString(footerStyle.Render("  (none registered)"))
		b.WriteString("\n")
	}
	for _, ws := range d.status.Workers {
		b.WriteString(workerLine(ws))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("EVENTS"))
	b.WriteString("\n")
	for _, evt := range d.visibleEvents() {
		b.WriteString(eventLine(evt))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if d.done != "" {
		b.WriteString(doneStyle.Render(d.done))
		b.WriteString(footerStyle.Render("  press any key to exit"))
	} else {
		b.WriteString(d.spin.View())
		b.WriteString(footerStyle.Render(" running  [q] quit"))
	}
	b.WriteString("\n")

	return b.String()
}

// summaryLine renders the dispatch counters.
func (d *Dashboard) summaryLine() string {
	st := d.status
	return footerStyle.Render(fmt.Sprintf(
		"workers %d (%d enabled)  pending %d  active %d  processed %d  failed %d",
		len(st.Workers), st.EnabledWorkers, st.PendingTasks,
		st.ActiveDispatches, st.Processed, st.Failed,
	))
}

// visibleEvents trims the feed to the space below the worker table.
func (d *Dashboard) visibleEvents() []bus.Event {
	// Header, summary, section titles, worker rows, footer.
	used := 9 + len(d.status.Workers)
	avail := d.height - used
	if avail < 3 {
		avail = 3
	}
	if len(d.feed) <= avail {
		return d.feed
	}
	return d.feed[len(d.feed)-avail:]
}

// workerLine renders one row of the worker table.
func workerLine(ws models.WorkerStatus) string {
	stateStyle, ok := stateStyles[ws.State]
	if !ok {
		stateStyle = footerStyle
	}

	stats := fmt.Sprintf("done %d  failed %d  avg %s",
		ws.Stats.TasksCompleted, ws.Stats.TasksFailed,
		formatDuration(ws.Stats.AverageExecutionTime))

	gate := ""
	if !ws.Enabled {
		gate = eventErrStyle.Render(" [disabled]")
	}

	return fmt.Sprintf("  %-14s %s%s  %s  %s",
		ws.Name,
		stateStyle.Render(string(ws.State)),
		gate,
		footerStyle.Render(strings.Join(ws.Capabilities, ",")),
		footerStyle.Render(stats),
	)
}

// eventLine renders one row of the event feed.
func eventLine(evt bus.Event) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(eventTimeStyle.Render(evt.Timestamp.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(eventTypeStyle.Render(fmt.Sprintf("%-17s", evt.Type)))

	switch data := evt.Data.(type) {
	case models.TaskEvent:
		b.WriteString(" ")
		b.WriteString(data.TaskID)
		if data.WorkerID != "" {
			b.WriteString(footerStyle.Render(" -> " + data.WorkerID))
		}
		if data.Duration > 0 {
			b.WriteString(footerStyle.Render(" " + formatDuration(data.Duration)))
		}
		if data.Err != "" {
			b.WriteString(" ")
			b.WriteString(eventErrStyle.Render(data.Err))
		}
	case models.WorkerEvent:
		b.WriteString(" ")
		b.WriteString(data.WorkerID)
	}
	return b.String()
}

// formatDuration renders a duration compactly for table cells.
func formatDuration(dur time.Duration) string {
	switch {
	case dur == 0:
		return "-"
	case dur < time.Second:
		return fmt.Sprintf("%dms", dur.Milliseconds())
	case dur < time.Minute:
		return fmt.Sprintf("%.1fs", dur.Seconds())
	default:
		return dur.Round(time.Second).String()
	}
}

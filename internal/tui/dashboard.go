// Package tui provides the live terminal dashboard for conductor.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/internal/orchestrator"
)

// maxEventLines bounds the scrollback of the event feed.
const maxEventLines = 50

// StatusProvider supplies the orchestrator view the dashboard renders.
type StatusProvider interface {
	Status() orchestrator.Status
}

// statusMsg carries a fresh status poll.
type statusMsg orchestrator.Status

// eventMsg carries one event from the bus forwarder.
type eventMsg bus.Event

// eventsClosedMsg signals the forwarder channel has closed.
type eventsClosedMsg struct{}

// tickMsg drives the periodic status refresh.
type tickMsg time.Time

// DoneMsg asks the dashboard to show a final line and quit on the next
// keypress. The run command sends it when all tasks have settled.
type DoneMsg struct {
	Message string
}

// Dashboard is the bubbletea model for the live run view.
type Dashboard struct {
	// source provides status snapshots.
	source StatusProvider
	// events is the bus forwarder channel, nil once closed.
	events <-chan bus.Event
	// refresh is the status poll period.
	refresh time.Duration
	// status is the latest snapshot.
	status orchestrator.Status
	// feed holds the most recent event lines, newest last.
	feed []bus.Event
	// spin indicates dispatch activity.
	spin spinner.Model
	// width and height track the terminal size.
	width  int
	height int
	// done holds the final message once the run settles.
	done string
	// quitting indicates the dashboard is shutting down.
	quitting bool
}

// NewDashboard creates a dashboard polling source every refresh and
// consuming events from fwd.
func NewDashboard(source StatusProvider, fwd *bus.Forwarder, refresh time.Duration) *Dashboard {
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return &Dashboard{
		source:  source,
		events:  fwd.Events(),
		refresh: refresh,
		status:  source.Status(),
		spin:    sp,
		width:   80,
		height:  24,
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spin.Tick, d.tick(), d.nextEvent())
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			d.quitting = true
			return d, tea.Quit
		default:
			if d.done != "" {
				d.quitting = true
				return d, tea.Quit
			}
		}
		return d, nil

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil

	case tickMsg:
		return d, tea.Batch(d.poll(), d.tick())

	case statusMsg:
		d.status = orchestrator.Status(msg)
		return d, nil

	case eventMsg:
		d.feed = append(d.feed, bus.Event(msg))
		if len(d.feed) > maxEventLines {
			d.feed = d.feed[len(d.feed)-maxEventLines:]
		}
		return d, d.nextEvent()

	case eventsClosedMsg:
		d.events = nil
		return d, nil

	case DoneMsg:
		d.done = msg.Message
		return d, d.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spin, cmd = d.spin.Update(msg)
		return d, cmd
	}

	return d, nil
}

// tick schedules the next status poll.
func (d *Dashboard) tick() tea.Cmd {
	return tea.Tick(d.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// poll reads a status snapshot off the model's goroutine.
func (d *Dashboard) poll() tea.Cmd {
	source := d.source
	return func() tea.Msg {
		return statusMsg(source.Status())
	}
}

// nextEvent waits for one forwarded event.
func (d *Dashboard) nextEvent() tea.Cmd {
	ch := d.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(evt)
	}
}

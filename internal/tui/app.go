package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxEventLines  = 200
	reconnectDelay = 3 * time.Second
)

// relayCounters mirrors the counters in the relay's "connected" event.
type relayCounters struct {
	Configured bool  `json:"configured"`
	Received   int64 `json:"received"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
	Rejected   int64 `json:"rejected"`
}

type eventLine struct {
	at      time.Time
	kind    string
	summary string
}

type (
	connectedMsg struct {
		events <-chan Event
		errs   <-chan error
	}
	eventMsg        Event
	streamClosedMsg struct{ err error }
	reconnectMsg    struct{}
)

// App is the root bubbletea model for `forumrelay watch`.
type App struct {
	url    string
	client *http.Client
	ctx    context.Context
	cancel context.CancelFunc

	width     int
	height    int
	connected bool
	paused    bool
	lastErr   error
	counters  relayCounters
	lines     []eventLine

	events <-chan Event
	errs   <-chan error
}

// NewApp creates the TUI for the SSE stream at eventsURL.
func NewApp(eventsURL string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{url: eventsURL, client: &http.Client{}, ctx: ctx, cancel: cancel}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	defer a.cancel()
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.connect()
}

func (a *App) connect() tea.Cmd {
	ctx, client, url := a.ctx, a.client, a.url
	return func() tea.Msg {
		events, errs, err := Stream(ctx, client, url)
		if err != nil {
			return streamClosedMsg{err: err}
		}
		return connectedMsg{events: events, errs: errs}
	}
}

func (a *App) waitForEvent() tea.Cmd {
	events, errs := a.events, a.errs
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return streamClosedMsg{err: <-errs}
		}
		return eventMsg(evt)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.cancel()
			return a, tea.Quit
		case "c":
			a.lines = nil
		case "p":
			a.paused = !a.paused
		}

	case connectedMsg:
		a.events, a.errs = msg.events, msg.errs
		a.connected = true
		a.lastErr = nil
		return a, a.waitForEvent()

	case eventMsg:
		a.apply(Event(msg))
		return a, a.waitForEvent()

	case streamClosedMsg:
		a.connected = false
		a.lastErr = msg.err
		if a.ctx.Err() != nil {
			return a, nil
		}
		return a, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return a, a.connect()
	}
	return a, nil
}

// apply folds one stream event into the counters and the event log.
func (a *App) apply(evt Event) {
	switch evt.Type {
	case "connected":
		_ = json.Unmarshal(evt.Payload, &a.counters)
	case "webhook.received":
		a.counters.Received++
	case "relay.delivered":
		a.counters.Delivered++
	case "relay.failed":
		a.counters.Failed++
	case "relay.rejected":
		a.counters.Rejected++
	}
	if a.paused {
		return
	}
	a.lines = append(a.lines, eventLine{at: time.Now(), kind: evt.Type, summary: summarize(evt)})
	if len(a.lines) > maxEventLines {
		a.lines = a.lines[len(a.lines)-maxEventLines:]
	}
}

// summarize renders the interesting payload fields of evt on one line.
func summarize(evt Event) string {
	var p map[string]any
	_ = json.Unmarshal(evt.Payload, &p)
	field := func(k string) string {
		if v, ok := p[k]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}
	join := func(parts ...string) string {
		out := parts[:0]
		for _, s := range parts {
			if s != "" {
				out = append(out, s)
			}
		}
		return strings.Join(out, " · ")
	}

	switch evt.Type {
	case "connected":
		return "stream connected"
	case "gateway.started":
		return join("listening", field("addr"))
	case "webhook.received":
		return join("route", field("route"))
	case "relay.delivered", "relay.failed":
		return join(field("type"), field("title"), field("author"))
	case "relay.rejected":
		return join(field("route"), field("reason"))
	case "relay.rate_limited":
		return join(field("route"), field("ip"))
	case "probe.result":
		if field("ok") == "true" {
			return "NapCat reachable"
		}
		return "NapCat probe failed"
	default:
		return string(evt.Payload)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	counters := a.renderCounters()

	logHeight := a.height - lipgloss.Height(header) - lipgloss.Height(counters) - 4
	if logHeight < 3 {
		logHeight = 3
	}
	log := panelStyle.Width(max(20, a.width-4)).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("Events"),
			a.renderLines(logHeight-2),
		),
	)

	status := statusBarStyle.Width(a.width).Render("c clear  p pause  q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, counters, log, status)
}

func (a *App) renderHeader() string {
	state := okStyle.Render("● connected")
	if !a.connected {
		state = failStyle.Render("● disconnected")
		if a.lastErr != nil {
			state += " " + dimStyle.Render(a.lastErr.Error())
		}
	}
	if a.paused {
		state += "  " + warnStyle.Render("paused")
	}
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("forumrelay"),
		"  ",
		dimStyle.Render(a.url),
		"  ",
		state,
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func (a *App) renderCounters() string {
	napcat := okStyle.Render("configured")
	if !a.counters.Configured {
		napcat = warnStyle.Render("not configured")
	}
	badge := func(label string, n int64, style lipgloss.Style) string {
		return mutedBadgeStyle.Render(label + " " + style.Render(fmt.Sprint(n)))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinHorizontal(lipgloss.Center,
		badge("received", a.counters.Received, infoStyle),
		" ",
		badge("delivered", a.counters.Delivered, okStyle),
		" ",
		badge("failed", a.counters.Failed, failStyle),
		" ",
		badge("rejected", a.counters.Rejected, warnStyle),
		"  NapCat ",
		napcat,
	))
}

func (a *App) renderLines(n int) string {
	if len(a.lines) == 0 {
		return dimStyle.Render("Waiting for forum webhooks...")
	}
	start := 0
	if len(a.lines) > n {
		start = len(a.lines) - n
	}
	rows := make([]string, 0, n)
	for _, l := range a.lines[start:] {
		rows = append(rows, dimStyle.Render(l.at.Format("15:04:05"))+"  "+
			eventStyle(l.kind).Render(fmt.Sprintf("%-18s", l.kind))+"  "+l.summary)
	}
	return strings.Join(rows, "\n")
}

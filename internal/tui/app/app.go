// Package app is the root Bubble Tea model for the steptrack TUI.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/steptrack/steptrack/internal/session"
	"github.com/steptrack/steptrack/internal/tui/client"
	"github.com/steptrack/steptrack/internal/tui/theme"
	"github.com/steptrack/steptrack/internal/ws"
)

const feedLimit = 6

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	state      session.State
	thresholds []int
	bar        progress.Model
	feed       []ws.MilestonePayload

	connected bool
	lastErr   string
}

type configMsg struct{ payload *ws.ConfigPayload }

type commandResultMsg struct {
	state *session.State
	err   error
}

// New creates the root model.
func New(wsClient *client.WSClient, httpClient *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:     wsClient,
		http:   httpClient,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap(),
		bar:    progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the WebSocket connection and fetches the daemon config.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ws.Listen(m.ctx), m.fetchConfig())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-10, 50)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.ConnectedMsg:
		m.connected = true
		m.lastErr = ""
		return m, m.ws.ReadLoop(m.ctx)

	case client.DisconnectedMsg:
		m.connected = false
		return m, m.ws.Listen(m.ctx)

	case client.SnapshotMsg:
		m.state = msg.Payload.State
		return m, m.ws.ReadLoop(m.ctx)

	case client.StateMsg:
		m.state = msg.Payload.State
		return m, m.ws.ReadLoop(m.ctx)

	case client.MilestoneMsg:
		m.feed = append([]ws.MilestonePayload{msg.Payload}, m.feed...)
		if len(m.feed) > feedLimit {
			m.feed = m.feed[:feedLimit]
		}
		return m, m.ws.ReadLoop(m.ctx)

	case configMsg:
		if msg.payload != nil {
			m.thresholds = msg.payload.Milestones
		}
		return m, nil

	case commandResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else if msg.state != nil {
			m.state = *msg.state
			m.lastErr = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		return m, m.commandCmd(m.http.Start)

	case key.Matches(msg, m.keys.Stop):
		return m, m.commandCmd(m.http.Stop)

	case key.Matches(msg, m.keys.Reset):
		return m, m.commandCmd(m.http.Reset)

	case key.Matches(msg, m.keys.Resync):
		m.ws.Resync()
		return m, nil
	}

	return m, nil
}

func (m Model) commandCmd(run func() (*session.State, error)) tea.Cmd {
	return func() tea.Msg {
		st, err := run()
		return commandResultMsg{state: st, err: err}
	}
}

func (m Model) fetchConfig() tea.Cmd {
	return func() tea.Msg {
		cfg, err := m.http.Config()
		if err != nil {
			return configMsg{}
		}
		return configMsg{payload: cfg}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		"",
		m.renderCounter(),
		m.renderPace(),
		"",
		m.renderProgress(),
		m.renderFeed(),
		"",
		theme.StyleDimmed.Render("  s:start  x:stop  r:reset  ctrl+r:resync  q:quit"),
	}

	if m.lastErr != "" {
		sections = append(sections, theme.StyleDanger.Render("  "+m.lastErr))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := theme.StyleHeader.Render(" STEPTRACK ")

	mode := m.state.Mode()
	modeBadge := lipgloss.NewStyle().
		Foreground(theme.ModeColor(mode)).
		Render("[" + mode + "]")

	conn := theme.StyleDanger.Render("◌ DISCONNECTED")
	if m.connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● live")
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(modeBadge) - lipgloss.Width(conn) - 4
	if gap < 1 {
		gap = 1
	}

	return title + " " + modeBadge + strings.Repeat(" ", gap) + conn
}

func (m Model) renderCounter() string {
	count := theme.StyleCounter.Render(fmt.Sprintf("%d", m.state.CumulativeSteps))
	label := theme.StyleDimmed.Render(" steps")
	box := theme.StyleBorder.Padding(0, 3).Render(count + label)
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
}

func (m Model) renderPace() string {
	cadence := m.state.Cadence.String()
	glyph := theme.CadenceGlyph(cadence)
	paced := lipgloss.NewStyle().
		Foreground(theme.CadenceColor(cadence)).
		Render(fmt.Sprintf("%s %s", glyph, cadence))
	rate := theme.StyleDimmed.Render(fmt.Sprintf("%.1f steps/s", m.state.StepsPerSecond))
	line := paced + "   " + rate
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, line)
}

func (m Model) renderProgress() string {
	prev, next, ok := nextThreshold(m.thresholds, m.state.CumulativeSteps)
	if !ok {
		if len(m.thresholds) > 0 {
			return lipgloss.PlaceHorizontal(m.width, lipgloss.Center,
				theme.StyleMilestone.Render("all milestones reached"))
		}
		return ""
	}

	pct := float64(m.state.CumulativeSteps-prev) / float64(next-prev)
	bar := m.bar.ViewAs(pct)
	label := theme.StyleDimmed.Render(fmt.Sprintf("next milestone: %d", next))
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, bar) + "\n" +
		lipgloss.PlaceHorizontal(m.width, lipgloss.Center, label)
}

func (m Model) renderFeed() string {
	if len(m.feed) == 0 {
		return ""
	}
	lines := []string{"", theme.StyleDimmed.Render("  milestones")}
	for _, p := range m.feed {
		lines = append(lines, theme.StyleMilestone.Render(
			fmt.Sprintf("  ★ %d steps", p.Threshold))+
			theme.StyleDimmed.Render("  "+p.At.Format("15:04:05")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// nextThreshold returns the previous and next milestone around steps.
// ok is false when every threshold has been passed or none are configured.
func nextThreshold(thresholds []int, steps int) (prev, next int, ok bool) {
	for _, t := range thresholds {
		if steps < t {
			return prev, t, true
		}
		prev = t
	}
	return 0, 0, false
}

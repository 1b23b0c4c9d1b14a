// ABOUTME: Terminal dashboard using the bubbletea framework
// ABOUTME: Polls the agent overview and recent activity on an interval
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const activityLimit = 15

// Source supplies the data the dashboard displays.
type Source interface {
	Overview(ctx context.Context) (*engine.Overview, error)
	ListActivity(ctx context.Context, activityType string, limit int) ([]models.ActivityLogEntry, error)
}

type refreshMsg struct {
	overview  *engine.Overview
	activity  []models.ActivityLogEntry
	err       error
	scheduled bool
}

type tickMsg time.Time

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx      context.Context
	source   Source
	interval time.Duration
	renderer *lipgloss.Renderer
	spinner  spinner.Model

	overview  *engine.Overview
	activity  []models.ActivityLogEntry
	err       error
	loading   bool
	refreshed time.Time

	width  int
	height int
}

// NewModel creates a dashboard model refreshing every interval.
func NewModel(ctx context.Context, source Source, interval time.Duration) Model {
	return Model{
		ctx:      ctx,
		source:   source,
		interval: interval,
		renderer: lipgloss.DefaultRenderer(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		loading:  true,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(true))
}

// fetch loads fresh data. Only scheduled fetches arm the next tick so a
// manual refresh does not start a second polling loop.
func (m Model) fetch(scheduled bool) tea.Cmd {
	return func() tea.Msg {
		msg := refreshMsg{scheduled: scheduled}
		msg.overview, msg.err = m.source.Overview(m.ctx)
		if msg.err == nil {
			msg.activity, msg.err = m.source.ListActivity(m.ctx, "", activityLimit)
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetch(false))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.overview = msg.overview
			m.activity = msg.activity
			m.refreshed = time.Now()
		}
		if !msg.scheduled {
			return m, nil
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tickMsg:
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.fetch(true))

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	st := newStyles(m.renderer)
	width := min(max(m.width-2, 20), 100)
	var s strings.Builder

	if m.overview == nil {
		if m.err != nil {
			s.WriteString(st.warn.Render("Error: " + m.err.Error()))
		} else {
			s.WriteString(m.spinner.View() + " Loading...")
		}
		s.WriteString("\n")
		s.WriteString(st.help.Render("q: Quit"))
		return s.String()
	}

	s.WriteString(RenderOverview(m.overview, m.renderer, width))
	s.WriteString("\n\n")
	s.WriteString(st.title.Render("Recent Activity"))
	s.WriteString("\n")
	if len(m.activity) == 0 {
		s.WriteString(st.muted.Render("No activity yet"))
	} else {
		s.WriteString(m.renderActivityTable())
	}
	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(st.warn.Render("Refresh failed: " + m.err.Error()))
		s.WriteString("\n")
	}

	status := "Updated " + m.refreshed.Format("15:04:05")
	if m.loading {
		status = m.spinner.View() + " Refreshing..."
	}
	s.WriteString(st.help.Render(status + " • r: Refresh • q: Quit"))
	return s.String()
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, source Source, interval time.Duration) error {
	p := tea.NewProgram(NewModel(ctx, source, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

//go:build !no_bubbletea

package top

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

type overviewMsg struct {
	overview *database.Overview
	err      error
	at       time.Time
}

type tickMsg struct{}

type model struct {
	ctx      context.Context
	src      Source
	interval time.Duration
	progress progress.Model
	overview *database.Overview
	err      error
	updated  time.Time
}

func newModel(ctx context.Context, src Source, interval time.Duration) model {
	return model{
		ctx:      ctx,
		src:      src,
		interval: interval,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
	}
}

func (m model) poll() tea.Msg {
	o, err := m.src.SystemOverview(m.ctx)
	return overviewMsg{overview: o, err: err, at: time.Now()}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Init() tea.Cmd {
	return m.poll
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.poll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = max(min(msg.Width-10, 80), 10)
		return m, nil

	case tickMsg:
		return m, m.poll

	case overviewMsg:
		m.err = msg.err
		if msg.err == nil {
			m.overview = msg.overview
			m.updated = msg.at
			return m, tea.Batch(m.progress.SetPercent(successRate(msg.overview)), m.tick())
		}
		return m, m.tick()

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString("\n  ")
	sb.WriteString(titleStyle.Render("relay overview"))
	sb.WriteString("\n\n")
	if m.overview == nil {
		sb.WriteString("  loading...\n")
	} else {
		sb.WriteString(summary(m.overview))
		sb.WriteString("\n  success ")
		sb.WriteString(m.progress.View())
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString("\n  ")
		sb.WriteString(errStyle.Render(fmt.Sprintf("Error: %s", m.err)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	help := "  q quit · r refresh"
	if !m.updated.IsZero() {
		help += " · updated " + m.updated.Format(time.TimeOnly)
	}
	sb.WriteString(helpStyle.Render(help))
	sb.WriteString("\n\n")
	return sb.String()
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, src Source, interval time.Duration) error {
	p := tea.NewProgram(
		newModel(ctx, src, interval),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

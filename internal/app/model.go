// Package app provides the Bubble Tea login and dashboard interface.
package app

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/worldboard/internal/dashboard"
	"github.com/verte-zerg/worldboard/internal/logging"
	"github.com/verte-zerg/worldboard/internal/model"
	"github.com/verte-zerg/worldboard/internal/session"
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3B82F6"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(1, 2)
)

// Backend is the API surface the interface drives.
type Backend interface {
	dashboard.Source
	Authenticate(ctx context.Context, username, password string) (string, error)
}

type loginResultMsg struct {
	token string
	err   error
}

// Model implements the Bubble Tea application shell. It owns the session and
// routes between the login form and the dashboard.
type Model struct {
	cfg     model.Config
	session *session.Session
	backend Backend

	route Route
	login loginForm
	board *board

	width  int
	height int
}

// NewModel constructs the application model. The start route is resolved on Init.
func NewModel(cfg model.Config, sess *session.Session, backend Backend) *Model {
	if cfg.StartRoute == "" {
		cfg.StartRoute = string(RouteDashboard)
	}
	return &Model{
		cfg:     cfg,
		session: sess,
		backend: backend,
		login:   newLoginForm(cfg),
	}
}

// Route returns the route currently shown.
func (m *Model) Route() Route {
	return m.route
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.Navigate(m.cfg.StartRoute)
}

// Navigate shows path, redirecting to login when the route is unknown or
// requires a token the session does not hold.
func (m *Model) Navigate(path string) tea.Cmd {
	route := Resolve(path, m.session.Authenticated())
	if route != RouteDashboard && m.board != nil {
		m.board.close()
		m.board = nil
	}
	m.route = route
	if route == RouteLogin {
		return m.login.reset()
	}
	if m.board != nil {
		return nil
	}
	m.board = newBoard(m.backend, m.cfg)
	m.board.resize(m.width, m.height)
	return m.board.load()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.board != nil {
			m.board.resize(m.width, m.height)
		}
		return m, nil
	case loginResultMsg:
		return m, m.handleLoginResult(msg)
	case optionsLoadedMsg:
		if m.board == nil || msg.board != m.board {
			return m, nil
		}
		return m, m.board.handleOptions(msg)
	case dataMsg:
		if m.board == nil || msg.board != m.board {
			return m, nil
		}
		m.board.handleData(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.route == RouteLogin {
			return m, m.updateLogin(msg)
		}
		return m, m.updateDashboard(msg)
	}
	if m.route == RouteLogin {
		return m, m.login.update(msg)
	}
	return m, nil
}

func (m *Model) updateLogin(msg tea.KeyMsg) tea.Cmd {
	if m.login.submitting {
		return nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		return tea.Quit
	case tea.KeyTab, tea.KeyDown:
		return m.login.setFocus(m.login.focus + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m.login.setFocus(m.login.focus - 1)
	case tea.KeyEnter:
		return m.submitLogin()
	case tea.KeyCtrlT:
		if !m.login.showTest {
			return nil
		}
		m.login.fillTestCredentials()
		return m.submitLogin()
	}
	return m.login.update(msg)
}

func (m *Model) submitLogin() tea.Cmd {
	if !m.login.validate() {
		return nil
	}
	m.login.submitting = true
	creds := m.login.credentials()
	backend := m.backend
	return func() tea.Msg {
		token, err := backend.Authenticate(context.Background(), creds.Username, creds.Password)
		return loginResultMsg{token: token, err: err}
	}
}

// handleLoginResult stores the token and opens the dashboard. A failed login
// leaves any stored token in place.
func (m *Model) handleLoginResult(msg loginResultMsg) tea.Cmd {
	m.login.submitting = false
	if msg.err != nil {
		logging.Warnf("login failed: %v", msg.err)
		m.login.errMsg = msgInvalidCredentials
		return nil
	}
	if err := m.session.Set(context.Background(), msg.token); err != nil {
		logging.Errorf("failed to store token: %v", err)
		m.login.errMsg = fmt.Sprintf("failed to store token: %v", err)
		return nil
	}
	logging.Infof("login succeeded")
	return m.Navigate(string(RouteDashboard))
}

func (m *Model) updateDashboard(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "x":
		return m.logout()
	}
	if m.board == nil {
		return nil
	}
	return m.board.handleKey(msg)
}

func (m *Model) logout() tea.Cmd {
	// The in-memory token is gone even when the stored copy could not be deleted.
	if err := m.session.Clear(context.Background()); err != nil {
		logging.Errorf("failed to clear token: %v", err)
	} else {
		logging.Infof("logged out")
	}
	return m.Navigate(string(RouteLogin))
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.route == RouteDashboard && m.board != nil {
		return m.board.view()
	}
	return m.login.view(m.width, m.height)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 60))
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

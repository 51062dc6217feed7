package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/worldboard/internal/model"
)

const (
	msgBlankFields        = "Please fill in all fields"
	msgInvalidCredentials = "Invalid credentials. Please try again."
)

type loginForm struct {
	inputs     []textinput.Model
	focus      int
	errMsg     string
	submitting bool

	testCreds model.Credentials
	showTest  bool
}

func newLoginForm(cfg model.Config) loginForm {
	username := newLoginInput("Username: ")
	password := newLoginInput("Password: ")
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	return loginForm{
		inputs:    []textinput.Model{username, password},
		testCreds: cfg.TestCredentials,
		showTest:  cfg.ShowTestButton,
	}
}

func newLoginInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 128
	input.Width = 32
	input.Cursor.SetMode(cursor.CursorStatic)
	return input
}

func (f *loginForm) reset() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.errMsg = ""
	f.submitting = false
	return f.setFocus(0)
}

func (f *loginForm) setFocus(idx int) tea.Cmd {
	count := len(f.inputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	f.focus = idx
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.focus {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *loginForm) credentials() model.Credentials {
	return model.Credentials{
		Username: f.inputs[0].Value(),
		Password: f.inputs[1].Value(),
	}
}

// validate reports the blank-field message, the only check made before
// contacting the backend.
func (f *loginForm) validate() bool {
	creds := f.credentials()
	if creds.Username == "" || creds.Password == "" {
		f.errMsg = msgBlankFields
		return false
	}
	f.errMsg = ""
	return true
}

func (f *loginForm) fillTestCredentials() {
	f.inputs[0].SetValue(f.testCreds.Username)
	f.inputs[1].SetValue(f.testCreds.Password)
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *loginForm) view(width, height int) string {
	body := []string{cardValueStyle.Render("Sign in")}
	for _, input := range f.inputs {
		body = append(body, input.View())
	}
	switch {
	case f.submitting:
		body = append(body, headerStyle.Render("Signing in..."))
	case f.errMsg != "":
		body = append(body, errorStyle.Render(f.errMsg))
	}
	help := "tab: next field  enter: sign in  esc: quit"
	if f.showTest {
		help = "tab: next field  enter: sign in  ctrl+t: use test credentials  esc: quit"
	}
	body = append(body, "", headerStyle.Render(help))
	box := modalStyle.Width(modalWidth(width)).Render(strings.Join(body, "\n"))
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

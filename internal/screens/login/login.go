// Package login is the sign-in and sign-up screen of the terminal client.
package login

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/ui/components"
	"github.com/abhisek/anamnesis/internal/ui/layout"
	"github.com/abhisek/anamnesis/internal/ui/theme"
)

const (
	fieldUsername = iota
	fieldEmail
	fieldPassword
)

type authDoneMsg struct {
	Profile screen.ProfileMsg
	Err     error
}

// LoginScreen collects credentials and signs the doctor in. In register
// mode it creates the account first.
type LoginScreen struct {
	backend     screen.Backend
	homeFactory func() screen.Screen
	fields      []components.TextInput
	focus       int
	register    bool
	busy        bool
	errMsg      string
	done        bool
}

var _ screen.Screen = (*LoginScreen)(nil)
var _ screen.KeyHintProvider = (*LoginScreen)(nil)

// New creates a LoginScreen that replaces itself with the screen produced
// by homeFactory once signed in.
func New(backend screen.Backend, homeFactory func() screen.Screen) *LoginScreen {
	fields := []components.TextInput{
		components.NewTextInput("Username", "dr.house", 50),
		components.NewTextInput("Email", "you@hospital.org", 254),
		components.NewPasswordInput("Password"),
	}
	for i := range fields {
		fields[i].SetWidth(32)
	}
	return &LoginScreen{
		backend:     backend,
		homeFactory: homeFactory,
		fields:      fields,
	}
}

func (l *LoginScreen) Init() tea.Cmd {
	return l.fields[l.focus].Focus()
}

func (l *LoginScreen) Title() string {
	if l.register {
		return "Sign Up"
	}
	return "Sign In"
}

func (l *LoginScreen) KeyHints() []layout.KeyHint {
	toggle := "Create account"
	if l.register {
		toggle = "Have an account"
	}
	return []layout.KeyHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl+R", Description: toggle},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

// visible lists the indexes of the fields shown in the current mode.
func (l *LoginScreen) visible() []int {
	if l.register {
		return []int{fieldUsername, fieldEmail, fieldPassword}
	}
	return []int{fieldUsername, fieldPassword}
}

func (l *LoginScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		l.busy = false
		if msg.Err != nil {
			l.errMsg = screen.ErrorText(msg.Err)
			return l, nil
		}
		return l, l.transition(msg.Profile)

	case tea.KeyPressMsg:
		if l.busy || l.done {
			return l, nil
		}
		switch msg.String() {
		case "ctrl+r":
			l.register = !l.register
			l.errMsg = ""
			return l, l.setFocus(fieldUsername)
		case "tab", "down":
			return l, l.move(1)
		case "shift+tab", "up":
			return l, l.move(-1)
		case "enter":
			vis := l.visible()
			if l.focus != vis[len(vis)-1] {
				return l, l.move(1)
			}
			return l, l.submit()
		}
	}

	var cmd tea.Cmd
	l.fields[l.focus], cmd = l.fields[l.focus].Update(msg)
	return l, cmd
}

func (l *LoginScreen) move(delta int) tea.Cmd {
	vis := l.visible()
	pos := 0
	for i, f := range vis {
		if f == l.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(vis)) % len(vis)
	return l.setFocus(vis[pos])
}

func (l *LoginScreen) setFocus(field int) tea.Cmd {
	for i := range l.fields {
		l.fields[i].Blur()
	}
	l.focus = field
	return l.fields[field].Focus()
}

func (l *LoginScreen) submit() tea.Cmd {
	username := l.fields[fieldUsername].Value()
	email := l.fields[fieldEmail].Value()
	password := l.fields[fieldPassword].Model.Value()

	switch {
	case username == "":
		l.fields[fieldUsername].SetError("username is required")
		return l.setFocus(fieldUsername)
	case l.register && email == "":
		l.fields[fieldEmail].SetError("email is required")
		return l.setFocus(fieldEmail)
	case password == "":
		l.fields[fieldPassword].SetError("password is required")
		return l.setFocus(fieldPassword)
	}

	l.busy = true
	l.errMsg = ""
	backend, register := l.backend, l.register
	return func() tea.Msg {
		ctx := context.Background()
		if register {
			if _, err := backend.Register(ctx, username, email, password); err != nil {
				return authDoneMsg{Err: err}
			}
		}
		if err := backend.Login(ctx, username, password); err != nil {
			return authDoneMsg{Err: err}
		}
		u, err := backend.Profile(ctx)
		if err != nil {
			return authDoneMsg{Err: err}
		}
		return authDoneMsg{Profile: screen.ProfileMsg{Username: u.Username, Points: u.Points, Rank: u.Rank}}
	}
}

func (l *LoginScreen) transition(p screen.ProfileMsg) tea.Cmd {
	if l.done {
		return nil
	}
	l.done = true
	home := l.homeFactory()
	return tea.Batch(
		func() tea.Msg { return p },
		func() tea.Msg { return router.ReplaceScreenMsg{Screen: home} },
	)
}

func (l *LoginScreen) View(width, height int) string {
	var sections []string

	sections = append(sections, RenderBanner(width))
	sections = append(sections, theme.Hint.Render("Take the history. Name the disease."))
	sections = append(sections, "")

	for _, i := range l.visible() {
		sections = append(sections, l.fields[i].View(), "")
	}

	switch {
	case l.busy:
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.TextDim).Render("Signing in..."))
	case l.errMsg != "":
		sections = append(sections, theme.ErrorText.Render(l.errMsg))
	}

	form := theme.Card.Render(strings.Join(sections, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, form)
}

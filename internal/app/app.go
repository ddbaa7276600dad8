// Package app is the root Bubble Tea model of the terminal client.
package app

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/screens/home"
	"github.com/abhisek/anamnesis/internal/screens/login"
	"github.com/abhisek/anamnesis/internal/ui/layout"
)

// Options configures the terminal client.
type Options struct {
	// Backend is the game server, normally a *client.Client.
	Backend screen.Backend
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router  *router.Router
	profile screen.ProfileMsg
	width   int
	height  int
}

// newAppModel creates a new AppModel starting at the sign-in screen.
func newAppModel(opts Options) AppModel {
	backend := opts.Backend
	start := login.New(backend, func() screen.Screen {
		return home.New(backend)
	})
	return AppModel{
		router: router.New(start),
	}
}

func (m AppModel) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case screen.ProfileMsg:
		m.profile = msg

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if h, ok := m.router.Active().(screen.EscHandler); ok && h.HandlesEsc() {
				break
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.render())
	return v
}

// render draws the full frame for the current terminal size.
func (m AppModel) render() string {
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.Header{
		Title:    title,
		Username: m.profile.Username,
		Points:   m.profile.Points,
		Rank:     m.profile.Rank,
	}.Render(m.width)
	footer := layout.RenderFooter(m.footerHints(active), m.width)
	return layout.Frame(header, footer, m.width, m.height, m.router.View)
}

func (m AppModel) footerHints(active screen.Screen) []layout.KeyHint {
	if hp, ok := active.(screen.KeyHintProvider); ok {
		return hp.KeyHints()
	}
	if m.router.Depth() > 1 {
		return []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}

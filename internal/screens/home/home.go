// Package home is the main menu of the terminal client.
package home

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/screens/game"
	"github.com/abhisek/anamnesis/internal/screens/history"
	"github.com/abhisek/anamnesis/internal/screens/leaderboard"
	"github.com/abhisek/anamnesis/internal/ui/components"
	"github.com/abhisek/anamnesis/internal/ui/theme"
)

const boxWidth = 56

// HomeScreen is the main menu.
type HomeScreen struct {
	backend screen.Backend
	menu    components.Menu
	profile screen.ProfileMsg
}

var _ screen.Screen = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(backend screen.Backend) *HomeScreen {
	h := &HomeScreen{backend: backend}

	push := func(factory func() screen.Screen) func() tea.Cmd {
		return func() tea.Cmd {
			return router.Push(factory())
		}
	}
	newGame := func(difficulty string) func() tea.Cmd {
		return push(func() screen.Screen { return game.New(backend, difficulty) })
	}

	h.menu = components.NewMenu([]components.MenuItem{
		{Label: "NEW GAME · EASY", Description: "common diseases, clear answers", Action: newGame("easy")},
		{Label: "NEW GAME · MEDIUM", Description: "wider differential", Action: newGame("medium")},
		{Label: "NEW GAME · HARD", Description: "rare diseases, vague patients", Action: newGame("hard")},
		{Label: "PAST GAMES", Action: push(func() screen.Screen { return history.New(backend) })},
		{Label: "LEADERBOARD", Action: push(func() screen.Screen { return leaderboard.New(backend, h.profile.Username) })},
		{Label: "EXIT", Action: func() tea.Cmd { return tea.Quit }},
	})
	return h
}

func (h *HomeScreen) Init() tea.Cmd {
	return screen.RefreshProfile(h.backend)
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if p, ok := msg.(screen.ProfileMsg); ok {
		h.profile = p
		return h, nil
	}
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) Title() string {
	return "Home"
}

func (h *HomeScreen) View(width, height int) string {
	cw := min(boxWidth, width-4)

	var sections []string

	sections = append(sections, lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Foreground(theme.Primary).
		Bold(true).
		Render("A N A M N E S I S"))
	sections = append(sections, lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Italic(true).
		Render("Interview the patient. Make the call."))

	if h.profile.Username != "" {
		rank := "unranked"
		if h.profile.Rank != nil {
			rank = fmt.Sprintf("rank #%d", *h.profile.Rank)
		}
		sections = append(sections, lipgloss.NewStyle().
			Width(cw).
			Align(lipgloss.Center).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(theme.Border).
			Foreground(theme.Text).
			Render(fmt.Sprintf("Dr. %s   %d pts   %s", h.profile.Username, h.profile.Points, rank)))
	}

	sections = append(sections, lipgloss.NewStyle().
		Width(cw).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(1, 2).
		Render(strings.TrimRight(h.menu.View(), "\n")))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		strings.Join(sections, "\n\n"))
}

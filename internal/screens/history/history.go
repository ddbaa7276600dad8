// Package history lists the doctor's past games.
package history

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/screens/game"
	"github.com/abhisek/anamnesis/internal/screens/result"
	"github.com/abhisek/anamnesis/internal/ui/layout"
	"github.com/abhisek/anamnesis/internal/ui/theme"
)

type historyLoadedMsg struct {
	Chats []client.Chat
	Err   error
}

type chatDeletedMsg struct {
	ID  int64
	Err error
}

// HistoryScreen displays past games, newest first.
type HistoryScreen struct {
	backend    screen.Backend
	chats      []client.Chat
	selected   int
	confirming bool
	loaded     bool
	errMsg     string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(backend screen.Backend) *HistoryScreen {
	return &HistoryScreen{backend: backend}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return s.reload()
}

func (s *HistoryScreen) reload() tea.Cmd {
	backend := s.backend
	return func() tea.Msg {
		chats, err := backend.ListChats(context.Background())
		return historyLoadedMsg{Chats: chats, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "Past Games"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	if s.confirming {
		return []layout.KeyHint{
			{Key: "Y", Description: "Delete"},
			{Key: "N", Description: "Keep"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Open"},
		{Key: "D", Description: "Delete"},
		{Key: "R", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = screen.ErrorText(msg.Err)
		} else {
			s.errMsg = ""
			s.chats = msg.Chats
			if s.selected >= len(s.chats) {
				s.selected = max(len(s.chats)-1, 0)
			}
		}
		s.loaded = true
		return s, nil

	case chatDeletedMsg:
		if msg.Err != nil {
			s.errMsg = screen.ErrorText(msg.Err)
			return s, nil
		}
		return s, s.reload()

	case tea.KeyMsg:
		if s.confirming {
			s.confirming = false
			switch msg.String() {
			case "y", "Y":
				return s, s.deleteSelected()
			}
			return s, nil
		}

		switch msg.String() {
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.chats)-1 {
				s.selected++
			}
		case "r":
			return s, s.reload()
		case "d":
			if len(s.chats) > 0 {
				s.confirming = true
			}
		case "enter":
			return s, s.open()
		}
	}
	return s, nil
}

func (s *HistoryScreen) open() tea.Cmd {
	if s.selected >= len(s.chats) {
		return nil
	}
	c := s.chats[s.selected]
	var next screen.Screen
	if c.IsFinished {
		next = result.New(result.FromChat(&c))
	} else {
		next = game.Resume(s.backend, c.ID)
	}
	return router.Push(next)
}

func (s *HistoryScreen) deleteSelected() tea.Cmd {
	if s.selected >= len(s.chats) {
		return nil
	}
	backend, id := s.backend, s.chats[s.selected].ID
	return func() tea.Msg {
		return chatDeletedMsg{ID: id, Err: backend.DeleteChat(context.Background(), id)}
	}
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading your cases...")
	}
	if len(s.chats) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Inherit(theme.Hint).
			Render("\n\n  No games yet. Your first patient is waiting!")
	}

	var b strings.Builder
	b.WriteString("\n")

	for i, c := range s.chats {
		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}

		status := "in progress"
		if c.IsFinished {
			score := 0
			if c.Score != nil {
				score = *c.Score
			}
			status = fmt.Sprintf("%4d pts  %s", score, c.CorrectDiagnosis)
		}

		line := fmt.Sprintf("%s%s  %-6s  %-20s  %s",
			prefix,
			c.StartTime.Local().Format("Jan 02 15:04"),
			c.Difficulty,
			truncate(c.Patient.Name, 20),
			status)

		style := lipgloss.NewStyle().Foreground(theme.Text)
		switch {
		case i == s.selected:
			style = theme.Selected
		case !c.IsFinished:
			style = style.Foreground(theme.Accent)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")
	}

	if s.confirming {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.Error).Bold(true).
				Render("Delete this game? [y/N]")))
	}

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

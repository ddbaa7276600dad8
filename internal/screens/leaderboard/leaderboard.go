// Package leaderboard shows the top doctors by points.
package leaderboard

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/ui/layout"
	"github.com/abhisek/anamnesis/internal/ui/theme"
)

// Size is how many entries the screen requests.
const Size = 20

type leaderboardLoadedMsg struct {
	Entries []client.LeaderboardEntry
	Err     error
}

// LeaderboardScreen displays the ranking.
type LeaderboardScreen struct {
	backend      screen.Backend
	username     string
	entries      []client.LeaderboardEntry
	scrollOffset int
	loaded       bool
	errMsg       string
}

var _ screen.Screen = (*LeaderboardScreen)(nil)
var _ screen.KeyHintProvider = (*LeaderboardScreen)(nil)

// New creates a new LeaderboardScreen. The row for username is
// highlighted.
func New(backend screen.Backend, username string) *LeaderboardScreen {
	return &LeaderboardScreen{backend: backend, username: username}
}

func (s *LeaderboardScreen) Init() tea.Cmd {
	backend := s.backend
	return func() tea.Msg {
		entries, err := backend.TopUsers(context.Background(), Size)
		return leaderboardLoadedMsg{Entries: entries, Err: err}
	}
}

func (s *LeaderboardScreen) Title() string {
	return "Leaderboard"
}

func (s *LeaderboardScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Scroll"},
		{Key: "R", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *LeaderboardScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case leaderboardLoadedMsg:
		if msg.Err != nil {
			s.errMsg = screen.ErrorText(msg.Err)
		} else {
			s.errMsg = ""
			s.entries = msg.Entries
			s.scrollOffset = 0
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return s, s.Init()
		case "up", "k":
			if s.scrollOffset > 0 {
				s.scrollOffset--
			}
		case "down", "j":
			if s.scrollOffset < len(s.entries)-1 {
				s.scrollOffset++
			}
		}
	}
	return s, nil
}

func medal(rank *int) string {
	if rank == nil {
		return "  -"
	}
	switch *rank {
	case 1:
		return " 🥇"
	case 2:
		return " 🥈"
	case 3:
		return " 🥉"
	}
	return fmt.Sprintf("%3d", *rank)
}

func (s *LeaderboardScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading leaderboard...")
	}
	if len(s.entries) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  Nobody has scored yet. Be the first!")
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.TextDim).
			Render(fmt.Sprintf("%-4s  %-24s  %8s", "Rank", "Doctor", "Points"))))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", 40))))
	b.WriteString("\n")

	visible := max(height-4, 1)
	end := min(s.scrollOffset+visible, len(s.entries))
	for _, e := range s.entries[s.scrollOffset:end] {
		line := fmt.Sprintf("%-4s  %-24s  %8d", medal(e.Rank), e.Username, e.Points)
		style := lipgloss.NewStyle().Foreground(theme.Text)
		if e.Username == s.username {
			style = style.Foreground(theme.Accent).Bold(true)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")
	}

	return b.String()
}

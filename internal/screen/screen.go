package screen

import (
	"context"
	"errors"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/ui/layout"
)

// Screen is one page of the terminal client.
type Screen interface {
	// Init returns an initial command when the screen is first created.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is an optional interface that screens can implement
// to provide custom footer key hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// ProfileMsg carries the signed-in doctor's standing to the header.
type ProfileMsg struct {
	Username string
	Points   int
	Rank     *int
}

// ErrorText renders an error for display, preferring the server's message.
func ErrorText(err error) string {
	var m interface{ UserMessage() string }
	if errors.As(err, &m) {
		return m.UserMessage()
	}
	return err.Error()
}

// Backend is the game server as the screens see it. *client.Client
// satisfies it.
type Backend interface {
	Register(ctx context.Context, username, email, password string) (*client.User, error)
	Login(ctx context.Context, username, password string) error
	Profile(ctx context.Context) (*client.User, error)
	TopUsers(ctx context.Context, n int) ([]client.LeaderboardEntry, error)
	ListChats(ctx context.Context) ([]client.Chat, error)
	CreateChat(ctx context.Context, difficulty string) (*client.Chat, error)
	GetChat(ctx context.Context, id int64) (*client.Chat, error)
	DeleteChat(ctx context.Context, id int64) error
	Messages(ctx context.Context, id int64) ([]client.Message, error)
	SendMessage(ctx context.Context, id int64, content string) (*client.Message, error)
	EndGame(ctx context.Context, id int64, answer string) (*client.Result, error)
}

var _ Backend = (*client.Client)(nil)

// RefreshProfile fetches the signed-in user's standing for the header.
// Failures are dropped; the header keeps its last values.
func RefreshProfile(b Backend) tea.Cmd {
	return func() tea.Msg {
		u, err := b.Profile(context.Background())
		if err != nil {
			return nil
		}
		return ProfileMsg{Username: u.Username, Points: u.Points, Rank: u.Rank}
	}
}

// EscHandler is implemented by screens that consume Esc themselves
// instead of letting the app pop them.
type EscHandler interface {
	HandlesEsc() bool
}

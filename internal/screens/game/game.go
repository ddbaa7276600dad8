// Package game is the interview screen: the doctor questions the patient
// and finally submits a diagnosis.
package game

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/screens/result"
	"github.com/abhisek/anamnesis/internal/ui/components"
	"github.com/abhisek/anamnesis/internal/ui/layout"
)

const spinnerInterval = 120 * time.Millisecond

// GameScreen runs one game against the server.
type GameScreen struct {
	backend    screen.Backend
	difficulty string
	chatID     int64

	chat       *client.Chat
	messages   []client.Message
	input      components.TextInput
	diagnosing bool
	waiting    bool
	spinner    int
	notice     string
	errMsg     string
	ended      bool
}

var _ screen.Screen = (*GameScreen)(nil)
var _ screen.KeyHintProvider = (*GameScreen)(nil)
var _ screen.EscHandler = (*GameScreen)(nil)

// New creates a screen that starts a fresh game at the given difficulty.
func New(backend screen.Backend, difficulty string) *GameScreen {
	return &GameScreen{
		backend:    backend,
		difficulty: difficulty,
		input:      components.NewTextInput("", "Ask the patient a question...", 1000),
	}
}

// Resume creates a screen that continues an existing game.
func Resume(backend screen.Backend, chatID int64) *GameScreen {
	g := New(backend, "")
	g.chatID = chatID
	return g
}

func (g *GameScreen) Init() tea.Cmd {
	g.waiting = true
	return tea.Batch(g.load(), g.input.Focus(), spinnerTick())
}

func (g *GameScreen) Title() string {
	if g.chat == nil {
		return "New Patient"
	}
	return "Patient: " + g.chat.Patient.Name
}

func (g *GameScreen) KeyHints() []layout.KeyHint {
	if g.errMsg != "" {
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	}
	if g.diagnosing {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Submit diagnosis"},
			{Key: "Esc", Description: "Keep interviewing"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Ask"},
		{Key: "Ctrl+D", Description: "Diagnose"},
		{Key: "Esc", Description: "Leave (resume later)"},
	}
}

// HandlesEsc reports whether Esc should stay with the screen. It does
// while a diagnosis is being typed.
func (g *GameScreen) HandlesEsc() bool {
	return g.diagnosing
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// load creates the chat, or fetches it and its transcript when resuming.
func (g *GameScreen) load() tea.Cmd {
	backend, difficulty, id := g.backend, g.difficulty, g.chatID
	return func() tea.Msg {
		ctx := context.Background()
		if id == 0 {
			chat, err := backend.CreateChat(ctx, difficulty)
			return chatLoadedMsg{Chat: chat, Err: err}
		}
		chat, err := backend.GetChat(ctx, id)
		if err != nil {
			return chatLoadedMsg{Err: err}
		}
		msgs, err := backend.Messages(ctx, id)
		return chatLoadedMsg{Chat: chat, Messages: msgs, Err: err}
	}
}

func (g *GameScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case chatLoadedMsg:
		return g.handleLoaded(msg)

	case replyMsg:
		return g.handleReply(msg)

	case gameEndedMsg:
		return g.handleEnded(msg)

	case spinnerTickMsg:
		if !g.waiting {
			return g, nil
		}
		g.spinner++
		return g, spinnerTick()

	case tea.KeyPressMsg:
		return g.handleKey(msg)
	}

	var cmd tea.Cmd
	g.input, cmd = g.input.Update(msg)
	return g, cmd
}

func (g *GameScreen) handleLoaded(msg chatLoadedMsg) (screen.Screen, tea.Cmd) {
	g.waiting = false
	if msg.Err != nil {
		g.errMsg = screen.ErrorText(msg.Err)
		return g, nil
	}
	g.chat = msg.Chat
	g.chatID = msg.Chat.ID
	g.messages = msg.Messages
	if g.chat.IsFinished {
		out := result.FromChat(g.chat)
		return g, router.Replace(result.New(out))
	}
	return g, nil
}

func (g *GameScreen) handleReply(msg replyMsg) (screen.Screen, tea.Cmd) {
	g.waiting = false
	if msg.Err != nil {
		// The server stores nothing on failure; drop the optimistic turn
		// and give the question back for another try.
		if n := len(g.messages); n > 0 {
			g.input.Model.SetValue(g.messages[n-1].Content)
			g.messages = g.messages[:n-1]
		}
		g.notice = screen.ErrorText(msg.Err)
		return g, nil
	}
	g.messages = append(g.messages, *msg.Reply)
	return g, nil
}

func (g *GameScreen) handleEnded(msg gameEndedMsg) (screen.Screen, tea.Cmd) {
	g.waiting = false
	if msg.Err != nil {
		g.notice = screen.ErrorText(msg.Err)
		g.input.Model.SetValue(msg.Answer)
		return g, nil
	}
	g.ended = true
	out := result.Outcome{
		PatientName:      g.chat.Patient.Name,
		Difficulty:       g.chat.Difficulty,
		Answer:           msg.Answer,
		CorrectDiagnosis: msg.Result.CorrectDiagnosis,
		Score:            msg.Result.Score,
		Feedback:         msg.Result.Feedback,
		Rubric:           msg.Result.Rubric,
	}
	return g, tea.Batch(
		router.Replace(result.New(out)),
		screen.RefreshProfile(g.backend),
	)
}

func (g *GameScreen) handleKey(msg tea.KeyPressMsg) (screen.Screen, tea.Cmd) {
	if g.errMsg != "" {
		return g, router.Pop
	}
	if g.chat == nil || g.waiting || g.ended {
		return g, nil
	}

	switch msg.String() {
	case "ctrl+d":
		g.setDiagnosing(!g.diagnosing)
		return g, nil
	case "esc":
		g.setDiagnosing(false)
		return g, nil
	case "enter":
		return g.submit()
	}

	g.notice = ""
	var cmd tea.Cmd
	g.input, cmd = g.input.Update(msg)
	return g, cmd
}

func (g *GameScreen) setDiagnosing(on bool) {
	g.diagnosing = on
	g.notice = ""
	if on {
		g.input.Label = "Final diagnosis"
		g.input.Model.Placeholder = "e.g. Community-acquired pneumonia"
	} else {
		g.input.Label = ""
		g.input.Model.Placeholder = "Ask the patient a question..."
	}
}

func (g *GameScreen) submit() (screen.Screen, tea.Cmd) {
	text := g.input.Value()
	if text == "" {
		return g, nil
	}
	g.input.Reset()
	g.notice = ""
	g.waiting = true

	backend, id := g.backend, g.chatID
	if g.diagnosing {
		return g, tea.Batch(func() tea.Msg {
			res, err := backend.EndGame(context.Background(), id, text)
			return gameEndedMsg{Answer: text, Result: res, Err: err}
		}, spinnerTick())
	}

	g.messages = append(g.messages, client.Message{
		Chat:      id,
		Sender:    "doctor",
		Content:   text,
		Timestamp: time.Now(),
	})
	return g, tea.Batch(func() tea.Msg {
		reply, err := backend.SendMessage(context.Background(), id, text)
		return replyMsg{Reply: reply, Err: err}
	}, spinnerTick())
}

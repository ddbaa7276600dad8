// Package screentest provides an in-memory screen.Backend for screen tests.
package screentest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/screen"
)

// Backend records calls and serves canned data. Err, when set, is
// returned by every call.
type Backend struct {
	mu sync.Mutex

	User     client.User
	Password string
	Top      []client.LeaderboardEntry
	Chats    map[int64]*client.Chat
	History  map[int64][]client.Message
	Reply    string
	Result   client.Result
	Err      error

	LoggedIn   bool
	Registered bool
	Sent       []string
	Answers    []string
	Deleted    []int64
	nextID     int64
}

var _ screen.Backend = (*Backend)(nil)

// New returns a backend with one user "house" whose password is "vicodin1".
func New() *Backend {
	return &Backend{
		User:     client.User{ID: 1, Username: "house", Email: "house@ppth.org"},
		Password: "vicodin1",
		Chats:    make(map[int64]*client.Chat),
		History:  make(map[int64][]client.Message),
		Reply:    "It hurts when I breathe in.",
		Result: client.Result{
			Score:            4200,
			Feedback:         "Solid history taking.",
			CorrectDiagnosis: "Pneumonia",
			Rubric: &client.Rubric{
				DiagnosisAccuracy:   2000,
				SymptomGathering:    900,
				AppearanceQuestions: 400,
				TactileQuestions:    300,
				OverallApproach:     600,
			},
		},
	}
}

// AddChat stores a chat and returns it.
func (b *Backend) AddChat(difficulty string, finished bool) *client.Chat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addChatLocked(difficulty, finished)
}

func (b *Backend) addChatLocked(difficulty string, finished bool) *client.Chat {
	b.nextID++
	c := &client.Chat{
		ID:         b.nextID,
		Doctor:     b.User.ID,
		Difficulty: difficulty,
		IsFinished: finished,
		StartTime:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Patient: client.Patient{
			Name:       "Maria Lopez",
			Age:        67,
			Sex:        "female",
			Complaints: "cough and fever for four days",
		},
	}
	if finished {
		score := b.Result.Score
		c.Score = &score
		c.Diagnosis = "pneumonia"
		c.CorrectDiagnosis = b.Result.CorrectDiagnosis
		c.Feedback = b.Result.Feedback
		c.Rubric = b.Result.Rubric
	}
	b.Chats[c.ID] = c
	return c
}

func (b *Backend) Register(_ context.Context, username, _, password string) (*client.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	b.Registered = true
	b.User.Username = username
	b.Password = password
	u := b.User
	return &u, nil
}

func (b *Backend) Login(_ context.Context, username, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	if username != b.User.Username || password != b.Password {
		return &client.APIError{Status: 401, Code: "invalid_credentials", Message: "invalid username or password"}
	}
	b.LoggedIn = true
	return nil
}

func (b *Backend) Profile(context.Context) (*client.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	u := b.User
	return &u, nil
}

func (b *Backend) TopUsers(_ context.Context, n int) ([]client.LeaderboardEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if n < len(b.Top) {
		return b.Top[:n], nil
	}
	return b.Top, nil
}

func (b *Backend) ListChats(context.Context) ([]client.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([]client.Chat, 0, len(b.Chats))
	for id := b.nextID; id > 0; id-- {
		if c, ok := b.Chats[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (b *Backend) CreateChat(_ context.Context, difficulty string) (*client.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	c := *b.addChatLocked(difficulty, false)
	return &c, nil
}

func (b *Backend) GetChat(_ context.Context, id int64) (*client.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	c, ok := b.Chats[id]
	if !ok {
		return nil, &client.APIError{Status: 404, Code: "not_found", Message: "chat not found"}
	}
	cp := *c
	return &cp, nil
}

func (b *Backend) DeleteChat(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	delete(b.Chats, id)
	b.Deleted = append(b.Deleted, id)
	return nil
}

func (b *Backend) Messages(_ context.Context, id int64) ([]client.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	return append([]client.Message(nil), b.History[id]...), nil
}

func (b *Backend) SendMessage(_ context.Context, id int64, content string) (*client.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if _, ok := b.Chats[id]; !ok {
		return nil, errors.New("no such chat")
	}
	b.Sent = append(b.Sent, content)
	now := time.Now()
	b.History[id] = append(b.History[id],
		client.Message{Chat: id, Sender: "doctor", Content: content, Timestamp: now},
		client.Message{Chat: id, Sender: "patient", Content: b.Reply, Timestamp: now},
	)
	return &client.Message{Chat: id, Sender: "patient", Content: b.Reply, Timestamp: now}, nil
}

func (b *Backend) EndGame(_ context.Context, id int64, answer string) (*client.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	c, ok := b.Chats[id]
	if !ok {
		return nil, errors.New("no such chat")
	}
	if c.IsFinished {
		return nil, &client.APIError{Status: 400, Code: "already_finished", Message: "game already finished"}
	}
	b.Answers = append(b.Answers, answer)
	c.IsFinished = true
	c.Diagnosis = answer
	b.User.Points += b.Result.Score
	r := b.Result
	return &r, nil
}

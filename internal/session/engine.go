package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/anamnesis/internal/evaluation"
	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/store"
)

// PatientGenerator creates personas for new games.
type PatientGenerator interface {
	Generate(ctx context.Context, d patient.Difficulty) (*patient.Generated, error)
}

// Evaluator scores a doctor's final answer.
type Evaluator interface {
	Evaluate(ctx context.Context, in evaluation.Input) (*evaluation.Result, error)
}

// RankUpdater refreshes the leaderboard after points change.
type RankUpdater interface {
	RecomputeRanks(ctx context.Context) error
}

// Config controls engine policy.
type Config struct {
	// AllowMessagesAfterFinish keeps the conversation open once the game
	// is scored. When false, SendMessage on a finished chat returns
	// ErrAlreadyFinished.
	AllowMessagesAfterFinish bool

	// HistoryTurns is how many prior messages accompany each patient reply
	// request. Zero sends only the new message.
	HistoryTurns int

	// EvaluationLease is how long an end-game claim blocks other attempts
	// before it is considered abandoned. It should exceed the oracle
	// timeout including retries.
	EvaluationLease time.Duration

	// ReplyMaxTokens and ReplyTemperature shape patient replies.
	ReplyMaxTokens   int
	ReplyTemperature float64

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		AllowMessagesAfterFinish: true,
		HistoryTurns:             10,
		EvaluationLease:          5 * time.Minute,
		ReplyMaxTokens:           300,
		ReplyTemperature:         0.7,
	}
}

// Result is what a doctor learns when a game ends.
type Result struct {
	Score            int                `json:"score"`
	Feedback         string             `json:"feedback"`
	CorrectDiagnosis string             `json:"correct_diagnosis"`
	Rubric           *evaluation.Rubric `json:"rubric,omitempty"`
}

// Deps are the collaborators an Engine needs.
type Deps struct {
	Chats     store.ChatRepo
	Messages  store.MessageRepo
	Generator PatientGenerator
	Evaluator Evaluator
	// Oracle answers as the patient.
	Oracle llm.Provider
	Ranks  RankUpdater
	Logger zerolog.Logger
}

// Engine runs games: creation, conversation turns and the final
// evaluation. It holds no per-game state; every call loads the chat.
type Engine struct {
	deps Deps
	cfg  Config
}

// New creates an Engine.
func New(deps Deps, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{deps: deps, cfg: cfg}
}

// Create starts a game of the given difficulty for actorID.
func (e *Engine) Create(ctx context.Context, actorID int64, difficulty string) (*store.Chat, error) {
	d, err := patient.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}

	gen, err := e.deps.Generator.Generate(ctx, d)
	if err != nil {
		return nil, err
	}

	chat, err := e.deps.Chats.Create(ctx, store.NewChat{
		DoctorID:         actorID,
		PatientData:      gen.PatientData,
		PatientResponses: gen.Responses,
		Difficulty:       string(d),
		CorrectDiagnosis: gen.Disease,
		StartTime:        e.cfg.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	e.deps.Logger.Info().
		Int64("chat_id", chat.ID).
		Int64("doctor_id", actorID).
		Str("difficulty", string(d)).
		Msg("game created")

	return redact(chat), nil
}

// Get returns a chat owned by actorID. The correct diagnosis is hidden
// until the game is finished.
func (e *Engine) Get(ctx context.Context, actorID, chatID int64) (*store.Chat, error) {
	chat, err := e.load(ctx, actorID, chatID)
	if err != nil {
		return nil, err
	}
	return redact(chat), nil
}

// History returns the chat's messages in recorded order.
func (e *Engine) History(ctx context.Context, actorID, chatID int64) ([]store.Message, error) {
	if _, err := e.load(ctx, actorID, chatID); err != nil {
		return nil, err
	}
	msgs, err := e.deps.Messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// List returns actorID's games, newest first.
func (e *Engine) List(ctx context.Context, actorID int64, limit int) ([]store.Chat, error) {
	chats, err := e.deps.Chats.ListByDoctor(ctx, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	for i := range chats {
		chats[i] = *redact(&chats[i])
	}
	return chats, nil
}

// Delete removes a chat and its messages.
func (e *Engine) Delete(ctx context.Context, actorID, chatID int64) error {
	if _, err := e.load(ctx, actorID, chatID); err != nil {
		return err
	}
	if err := e.deps.Chats.Delete(ctx, chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// SendMessage records the doctor's message and the patient's reply and
// returns the reply. Nothing is stored if the oracle fails.
func (e *Engine) SendMessage(ctx context.Context, actorID, chatID int64, text string) (*store.Message, error) {
	chat, err := e.load(ctx, actorID, chatID)
	if err != nil {
		return nil, err
	}
	if chat.IsFinished && !e.cfg.AllowMessagesAfterFinish {
		return nil, ErrAlreadyFinished
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	var history []store.Message
	if e.cfg.HistoryTurns > 0 {
		history, err = e.deps.Messages.ListByChat(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
	}

	resp, err := e.deps.Oracle.Generate(llm.WithPurpose(ctx, llm.PurposeReply), llm.Request{
		System:      buildReplySystem(chat),
		Messages:    buildReplyMessages(history, e.cfg.HistoryTurns, text),
		MaxTokens:   e.cfg.ReplyMaxTokens,
		Temperature: e.cfg.ReplyTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("patient reply: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return nil, fmt.Errorf("patient reply: %w", &llm.ErrInvalidResponse{Err: errors.New("empty reply")})
	}

	_, patientMsg, err := e.deps.Messages.AppendExchange(ctx, chatID, text, reply, e.cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}
	return patientMsg, nil
}

// EndGame scores the doctor's final answer. Exactly one call per chat can
// succeed; the rest get ErrAlreadyFinished. On evaluation failure the chat
// stays open and the call may be retried.
func (e *Engine) EndGame(ctx context.Context, actorID, chatID int64, answer string) (*Result, error) {
	chat, err := e.load(ctx, actorID, chatID)
	if err != nil {
		return nil, err
	}
	if chat.IsFinished {
		return nil, ErrAlreadyFinished
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyMessage
	}

	token, err := e.deps.Chats.ClaimEvaluation(ctx, chatID, e.cfg.EvaluationLease)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, ErrAlreadyFinished
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("claim evaluation: %w", err)
	}

	res, err := e.evaluate(ctx, chat, answer)
	if err != nil {
		e.release(ctx, chatID, token)
		return nil, err
	}

	var rubric json.RawMessage
	if res.Rubric != nil {
		if rubric, err = json.Marshal(res.Rubric); err != nil {
			e.release(ctx, chatID, token)
			return nil, fmt.Errorf("encode rubric: %w", err)
		}
	}

	err = e.deps.Chats.Finish(ctx, chatID, token, store.FinishData{
		Diagnosis: answer,
		Score:     res.Score,
		Feedback:  res.Feedback,
		Rubric:    rubric,
		EndTime:   e.cfg.Now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyFinished
	}
	if err != nil {
		e.release(ctx, chatID, token)
		return nil, fmt.Errorf("finish chat: %w", err)
	}

	if e.deps.Ranks != nil {
		if err := e.deps.Ranks.RecomputeRanks(ctx); err != nil {
			e.deps.Logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to recompute ranks")
		}
	}

	e.deps.Logger.Info().
		Int64("chat_id", chatID).
		Int64("doctor_id", actorID).
		Int("score", res.Score).
		Msg("game finished")

	return &Result{
		Score:            res.Score,
		Feedback:         res.Feedback,
		CorrectDiagnosis: chat.CorrectDiagnosis,
		Rubric:           res.Rubric,
	}, nil
}

func (e *Engine) evaluate(ctx context.Context, chat *store.Chat, answer string) (*evaluation.Result, error) {
	msgs, err := e.deps.Messages.ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	transcript := make([]evaluation.Turn, len(msgs))
	for i, m := range msgs {
		transcript[i] = evaluation.Turn{Sender: m.Sender, Content: m.Content}
	}

	return e.deps.Evaluator.Evaluate(ctx, evaluation.Input{
		Difficulty:       chat.Difficulty,
		CorrectDiagnosis: chat.CorrectDiagnosis,
		PatientData:      chat.PatientData,
		Transcript:       transcript,
		Answer:           answer,
	})
}

// release drops the evaluation lease even if ctx was cancelled.
func (e *Engine) release(ctx context.Context, chatID int64, token string) {
	if err := e.deps.Chats.ReleaseEvaluation(context.WithoutCancel(ctx), chatID, token); err != nil {
		e.deps.Logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to release evaluation lease")
	}
}

// load fetches a chat and checks ownership.
func (e *Engine) load(ctx context.Context, actorID, chatID int64) (*store.Chat, error) {
	chat, err := e.deps.Chats.Get(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat.DoctorID != actorID {
		return nil, ErrUnauthorized
	}
	return chat, nil
}

// redact hides the ground truth of unfinished games.
func redact(c *store.Chat) *store.Chat {
	if c.IsFinished {
		return c
	}
	out := *c
	out.CorrectDiagnosis = ""
	return &out
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrConflict is returned when a conditional write matched no row: the
// evaluation lease is held by someone else, or the chat is already
// finished.
var ErrConflict = errors.New("conflicting write")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

// Message senders.
const (
	SenderDoctor  = "doctor"
	SenderPatient = "patient"
)

// Chat is one game: a persona, its hidden diagnosis, and the write-once
// evaluation result.
type Chat struct {
	ID               int64
	DoctorID         int64
	PatientData      json.RawMessage
	PatientResponses map[string]string
	Difficulty       string
	CorrectDiagnosis string
	IsFinished       bool
	Diagnosis        string
	Score            *int
	Feedback         string
	Rubric           json.RawMessage
	StartTime        time.Time
	EndTime          *time.Time
}

// NewChat holds the fields written when a game starts.
type NewChat struct {
	DoctorID         int64
	PatientData      json.RawMessage
	PatientResponses map[string]string
	Difficulty       string
	CorrectDiagnosis string
	StartTime        time.Time
}

// FinishData is the evaluation result written when a game ends.
type FinishData struct {
	Diagnosis string
	Score     int
	Feedback  string
	Rubric    json.RawMessage
	EndTime   time.Time
}

// Message is one recorded turn.
type Message struct {
	ID        int64
	ChatID    int64
	Sender    string
	Content   string
	Timestamp time.Time
}

// User is a doctor account with leaderboard standing.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Points       int
	Rank         *int
	CreatedAt    time.Time
}

// NewUser holds the fields written at registration.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// Profile is the per-user record created alongside every account.
type Profile struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
}

// ChatRepo manages games and their write-once evaluation.
type ChatRepo interface {
	Create(ctx context.Context, in NewChat) (*Chat, error)

	// Get returns ErrNotFound when the chat does not exist.
	Get(ctx context.Context, id int64) (*Chat, error)

	// ListByDoctor returns the doctor's games, newest first. limit <= 0
	// means no limit.
	ListByDoctor(ctx context.Context, doctorID int64, limit int) ([]Chat, error)

	// Delete removes a chat and, by cascade, its messages.
	Delete(ctx context.Context, id int64) error

	// ClaimEvaluation takes the evaluation lease on an unfinished chat. A
	// lease older than leaseTTL is considered abandoned. Returns
	// ErrConflict when the chat is finished or the lease is held.
	ClaimEvaluation(ctx context.Context, id int64, leaseTTL time.Duration) (token string, err error)

	// ReleaseEvaluation drops a lease taken by ClaimEvaluation.
	ReleaseEvaluation(ctx context.Context, id int64, token string) error

	// Finish writes the result, flips is_finished and credits the doctor's
	// points in one transaction. Returns ErrConflict if the lease was lost
	// or the chat already finished.
	Finish(ctx context.Context, id int64, token string, data FinishData) error
}

// MessageRepo manages recorded turns.
type MessageRepo interface {
	// AppendExchange stores the doctor's message and the patient's reply
	// atomically. Timestamps strictly increase within a chat.
	AppendExchange(ctx context.Context, chatID int64, doctorText, patientText string, at time.Time) (doctor, patient *Message, err error)

	// ListByChat returns all messages of a chat in recorded order.
	ListByChat(ctx context.Context, chatID int64) ([]Message, error)
}

// UserRepo manages accounts and ranks.
type UserRepo interface {
	// Create returns ErrDuplicate when the username is taken.
	Create(ctx context.Context, in NewUser) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Top returns the n highest ranked users.
	Top(ctx context.Context, n int) ([]User, error)

	// RecomputeRanks assigns rank = 1-based position by points desc, ties
	// broken by id asc.
	RecomputeRanks(ctx context.Context) error
}

// ProfileRepo manages user profiles.
type ProfileRepo interface {
	Create(ctx context.Context, userID int64) (*Profile, error)
	GetByUserID(ctx context.Context, userID int64) (*Profile, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact match, empty = any
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single oracle request.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored oracle request.
type LLMRequestEventRecord struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates usage per purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates usage per model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// LLMEventRepo records and queries oracle calls.
type LLMEventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns nil, nil when the event does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEventRecord, error)
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

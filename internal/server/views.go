package server

import (
	"encoding/json"
	"time"

	"github.com/abhisek/anamnesis/internal/store"
)

type chatView struct {
	ID               int64           `json:"id"`
	Doctor           int64           `json:"doctor"`
	PatientData      json.RawMessage `json:"patient_data"`
	Difficulty       string          `json:"difficulty"`
	IsFinished       bool            `json:"is_finished"`
	Diagnosis        string          `json:"diagnosis,omitempty"`
	CorrectDiagnosis string          `json:"correct_diagnosis,omitempty"`
	Score            *int            `json:"score"`
	Feedback         string          `json:"feedback,omitempty"`
	Rubric           json.RawMessage `json:"rubric,omitempty"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          *time.Time      `json:"end_time"`
}

func newChatView(c *store.Chat) chatView {
	return chatView{
		ID:               c.ID,
		Doctor:           c.DoctorID,
		PatientData:      c.PatientData,
		Difficulty:       c.Difficulty,
		IsFinished:       c.IsFinished,
		Diagnosis:        c.Diagnosis,
		CorrectDiagnosis: c.CorrectDiagnosis,
		Score:            c.Score,
		Feedback:         c.Feedback,
		Rubric:           c.Rubric,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
	}
}

type messageView struct {
	ID        int64     `json:"id"`
	Chat      int64     `json:"chat"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessageView(m *store.Message) messageView {
	return messageView{
		ID:        m.ID,
		Chat:      m.ChatID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

type userView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Points   int    `json:"points"`
	Rank     *int   `json:"rank"`
}

func newUserView(u *store.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, Points: u.Points, Rank: u.Rank}
}

type tokenView struct {
	Access    string `json:"access"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

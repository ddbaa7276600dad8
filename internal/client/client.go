// Package client is a typed HTTP client for the anamnesis API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// UserMessage is the text to show a person.
func (e *APIError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// User is an account as the API returns it.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Points   int    `json:"points"`
	Rank     *int   `json:"rank"`
}

// LeaderboardEntry is one row of the top-users list.
type LeaderboardEntry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Rank     *int   `json:"rank"`
}

// Patient is the persona part of a chat.
type Patient struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Sex        string `json:"sex"`
	Complaints string `json:"complaints"`
	History    string `json:"history"`
	ExtraInfo  string `json:"extra_info"`
}

// Chat is one game.
type Chat struct {
	ID               int64      `json:"id"`
	Doctor           int64      `json:"doctor"`
	Patient          Patient    `json:"patient_data"`
	Difficulty       string     `json:"difficulty"`
	IsFinished       bool       `json:"is_finished"`
	Diagnosis        string     `json:"diagnosis"`
	CorrectDiagnosis string     `json:"correct_diagnosis"`
	Score            *int       `json:"score"`
	Feedback         string     `json:"feedback"`
	Rubric           *Rubric    `json:"rubric"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
}

// Message is one turn of a chat.
type Message struct {
	ID        int64     `json:"id"`
	Chat      int64     `json:"chat"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Rubric is the per-criterion breakdown of a score.
type Rubric struct {
	DiagnosisAccuracy   int `json:"diagnosis_accuracy"`
	SymptomGathering    int `json:"symptom_gathering"`
	AppearanceQuestions int `json:"appearance_questions"`
	TactileQuestions    int `json:"tactile_questions"`
	OverallApproach     int `json:"overall_approach"`
}

// Result is the outcome of ending a game.
type Result struct {
	Score            int     `json:"score"`
	Feedback         string  `json:"feedback"`
	CorrectDiagnosis string  `json:"correct_diagnosis"`
	Rubric           *Rubric `json:"rubric"`
}

type tokenResponse struct {
	Access string `json:"access"`
}

// Client calls the API. After Login it sends the access token on every
// request. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken starts the client with an existing access token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Evaluation can take as long as the server's oracle timeout.
		http: &http.Client{Timeout: 3 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (*User, error) {
	var u User
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/register", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for an access token and keeps it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tok tokenResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/token", body, &tok); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = tok.Access
	c.mu.Unlock()
	return nil
}

// Profile returns the logged-in user.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// TopUsers returns the leaderboard.
func (c *Client) TopUsers(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	q := url.Values{"n": {strconv.Itoa(n)}}
	var out []LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, "/api/users/top?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListChats returns past games, newest first.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var out []Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChat starts a game.
func (c *Client) CreateChat(ctx context.Context, difficulty string) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodPost, "/api/chats", map[string]string{"difficulty": difficulty}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChat loads one game.
func (c *Client) GetChat(ctx context.Context, id int64) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodGet, chatPath(id, ""), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat removes a game.
func (c *Client) DeleteChat(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, chatPath(id, ""), nil, nil)
}

// Messages returns the transcript of a game.
func (c *Client) Messages(ctx context.Context, id int64) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, http.MethodGet, chatPath(id, "/messages"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage asks the patient something and returns the reply.
func (c *Client) SendMessage(ctx context.Context, id int64, content string) (*Message, error) {
	var m Message
	if err := c.do(ctx, http.MethodPost, chatPath(id, "/messages"), map[string]string{"content": content}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EndGame submits the final diagnosis.
func (c *Client) EndGame(ctx context.Context, id int64, answer string) (*Result, error) {
	var r Result
	if err := c.do(ctx, http.MethodPost, chatPath(id, "/end"), map[string]string{"answer": answer}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func chatPath(id int64, suffix string) string {
	return "/api/chats/" + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

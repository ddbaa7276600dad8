package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/anamnesis/internal/auth"
	"github.com/abhisek/anamnesis/internal/evaluation"
	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/session"
	"github.com/abhisek/anamnesis/internal/store"
	"github.com/abhisek/anamnesis/internal/users"
)

type stubGenerator struct {
	err error
}

func (g stubGenerator) Generate(_ context.Context, d patient.Difficulty) (*patient.Generated, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &patient.Generated{
		Difficulty:  d,
		Disease:     "Influenza",
		PatientData: json.RawMessage(`{"name":"Maria Lopez","age":34,"sex":"female"}`),
		Responses:   map[string]string{"Can you describe your symptoms?": "Fever and aches."},
	}, nil
}

type testEnv struct {
	handler   http.Handler
	store     *store.Store
	engine    *session.Engine
	patient   *llm.MockProvider
	evaluator *llm.MockProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "anamnesis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	accounts := users.New(st.UserRepo(), st.ProfileRepo(), users.WithBcryptCost(bcrypt.MinCost))
	issuer, err := auth.NewIssuer("server-test-secret-0123456789abcdef", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		store:     st,
		patient:   llm.NewMockProvider(),
		evaluator: llm.NewMockProvider(),
	}
	env.engine = session.New(session.Deps{
		Chats:     st.ChatRepo(),
		Messages:  st.MessageRepo(),
		Generator: stubGenerator{},
		Evaluator: evaluation.New(env.evaluator, evaluation.DefaultConfig()),
		Oracle:    env.patient,
		Ranks:     accounts,
		Logger:    zerolog.Nop(),
	}, session.DefaultConfig())

	env.handler = New(Options{
		Games:    env.engine,
		Accounts: accounts,
		Issuer:   issuer,
		DB:       st,
		Logger:   zerolog.Nop(),
	}).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns an access token.
func (e *testEnv) signup(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/token", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok tokenView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Access)
	return tok.Access
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/chats", "/api/users/profile", "/api/chats/1"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, codeUnauthorized, decode[ErrorBody](t, rec).Error)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "house")

	rec := env.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "house", "email": "x@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/token", "", map[string]string{
		"username": "house", "password": "nope-nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeInvalidCredentials, decode[ErrorBody](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[userView](t, rec)
	assert.Equal(t, "house", profile.Username)
	assert.Equal(t, 0, profile.Points)

	rec = env.do(t, http.MethodPost, "/api/token/refresh", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[tokenView](t, rec).Access)
}

func TestFullGame(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "house")

	rec := env.do(t, http.MethodPost, "/api/chats", token, map[string]string{"difficulty": "easy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	chat := decode[chatView](t, rec)
	assert.Empty(t, chat.CorrectDiagnosis)
	assert.False(t, chat.IsFinished)

	env.patient.AddResponse(llm.MockText("I have had a fever for three days."))
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chat.ID), token,
		map[string]string{"content": "How long have you had these symptoms?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[messageView](t, rec)
	assert.Equal(t, store.SenderPatient, reply.Sender)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chat.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]messageView](t, rec), 2)

	env.evaluator.AddResponse(llm.MockText("Score: 4500\nFeedback: good questioning"))
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/chats/%d/end", chat.ID), token,
		map[string]string{"answer": "Influenza"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[session.Result](t, rec)
	assert.Equal(t, 4500, result.Score)
	assert.Equal(t, "Influenza", result.CorrectDiagnosis)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/chats/%d/end", chat.ID), token,
		map[string]string{"answer": "Influenza"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeAlreadyFinished, decode[ErrorBody](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/api/users/top", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decode[[]users.Entry](t, rec)
	require.Len(t, top, 1)
	assert.Equal(t, 4500, top[0].Points)
	require.NotNil(t, top[0].Rank)
	assert.Equal(t, 1, *top[0].Rank)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d", chat.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Influenza", decode[chatView](t, rec).CorrectDiagnosis)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/chats/%d", chat.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d", chat.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "house")
	intruder := env.signup(t, "wilson")

	rec := env.do(t, http.MethodPost, "/api/chats", owner, map[string]string{"difficulty": "easy"})
	require.Equal(t, http.StatusCreated, rec.Code)
	chat := decode[chatView](t, rec)
	msgPath := fmt.Sprintf("/api/chats/%d/messages", chat.ID)
	endPath := fmt.Sprintf("/api/chats/%d/end", chat.ID)

	tests := []struct {
		name   string
		setup  func()
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{
			name: "not owner", method: http.MethodPost, path: msgPath, token: intruder,
			body: map[string]string{"content": "hi"}, status: http.StatusForbidden, code: codeForbidden,
		},
		{
			name: "bad difficulty", method: http.MethodPost, path: "/api/chats", token: owner,
			body: map[string]string{"difficulty": "extreme"}, status: http.StatusBadRequest, code: codeInvalidDifficulty,
		},
		{
			name: "empty message", method: http.MethodPost, path: msgPath, token: owner,
			body: map[string]string{"content": "  "}, status: http.StatusBadRequest, code: codeEmptyMessage,
		},
		{
			name: "unknown chat", method: http.MethodGet, path: "/api/chats/999", token: owner,
			status: http.StatusNotFound, code: codeNotFound,
		},
		{
			name: "non numeric id", method: http.MethodGet, path: "/api/chats/abc", token: owner,
			status: http.StatusNotFound, code: codeNotFound,
		},
		{
			name: "oracle unavailable", method: http.MethodPost, path: msgPath, token: owner,
			body: map[string]string{"content": "hi"}, status: http.StatusServiceUnavailable, code: codeOracleUnavailable,
		},
		{
			name:   "unparsable evaluation",
			setup:  func() { env.evaluator.AddResponse(llm.MockText("no score here")) },
			method: http.MethodPost, path: endPath, token: owner,
			body: map[string]string{"answer": "Influenza"}, status: http.StatusBadGateway, code: codeEvaluationParse,
		},
		{
			name: "bad top n", method: http.MethodGet, path: "/api/users/top?n=zero",
			status: http.StatusBadRequest, code: codeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorBody](t, rec).Error)
		})
	}
}

func TestGenerationFailureMapsTo502(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "house")

	st := env.store
	accounts := users.New(st.UserRepo(), st.ProfileRepo())
	issuer, err := auth.NewIssuer("server-test-secret-0123456789abcdef", time.Hour)
	require.NoError(t, err)
	engine := session.New(session.Deps{
		Chats:     st.ChatRepo(),
		Messages:  st.MessageRepo(),
		Generator: stubGenerator{err: &patient.GenerationError{Disease: "Influenza", Reason: "persona missing name"}},
		Oracle:    llm.NewMockProvider(),
		Logger:    zerolog.Nop(),
	}, session.DefaultConfig())
	env.handler = New(Options{Games: engine, Accounts: accounts, Issuer: issuer, DB: st, Logger: zerolog.Nop()}).Handler()

	rec := env.do(t, http.MethodPost, "/api/chats", token, map[string]string{"difficulty": "hard"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, codeGenerationFailed, body.Error)
	assert.NotContains(t, body.Message, "persona missing name")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", session.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("patient reply: %w", &llm.ErrRateLimit{}), http.StatusServiceUnavailable},
		{fmt.Errorf("patient reply: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{fmt.Errorf("patient reply: %w", &llm.ErrInvalidResponse{Err: errors.New("empty")}), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestRecoveryReturns500(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	s.echo.GET("/boom", func(echo.Context) error { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, decode[ErrorBody](t, rec).Error)
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/anamnesis/internal/auth"
	"github.com/abhisek/anamnesis/internal/evaluation"
	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/server"
	"github.com/abhisek/anamnesis/internal/session"
	"github.com/abhisek/anamnesis/internal/store"
	"github.com/abhisek/anamnesis/internal/users"
)

const personaJSON = `{
	"patient_data": {
		"name": "Maria Lopez",
		"age": 34,
		"sex": "female",
		"complaints": "Fever, aching muscles and a dry cough",
		"history": "No chronic illness",
		"extra_info": "Works as a librarian"
	},
	"patient_responses": {
		"symptoms": "I have a high fever and my whole body aches.",
		"duration": "It started suddenly three days ago.",
		"allergies_chronic": "No allergies and nothing chronic.",
		"medications": "Just paracetamol.",
		"appearance": "I look pale and sweaty, no rashes.",
		"palpation": "My muscles are sore when pressed."
	}
}`

// newStack runs the real server with mock oracles behind httptest.
func newStack(t *testing.T) (*Client, *llm.MockProvider) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "anamnesis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	oracle := llm.NewMockProvider()
	accounts := users.New(st.UserRepo(), st.ProfileRepo(), users.WithBcryptCost(bcrypt.MinCost))
	issuer, err := auth.NewIssuer("client-test-secret-0123456789abcdef", time.Hour)
	require.NoError(t, err)

	engine := session.New(session.Deps{
		Chats:     st.ChatRepo(),
		Messages:  st.MessageRepo(),
		Generator: patient.New(oracle, patient.DefaultConfig()),
		Evaluator: evaluation.New(oracle, evaluation.DefaultConfig()),
		Oracle:    oracle,
		Ranks:     accounts,
		Logger:    zerolog.Nop(),
	}, session.DefaultConfig())

	srv := server.New(server.Options{
		Games:    engine,
		Accounts: accounts,
		Issuer:   issuer,
		DB:       st,
		Logger:   zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL), oracle
}

func TestClient_GameRoundTrip(t *testing.T) {
	c, oracle := newStack(t)
	ctx := context.Background()

	_, err := c.Register(ctx, "house", "house@example.com", "password123")
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "house", "password123"))
	require.NotEmpty(t, c.Token())

	oracle.AddResponse(llm.MockResponse{Content: json.RawMessage(personaJSON)})
	chat, err := c.CreateChat(ctx, "easy")
	require.NoError(t, err)
	assert.Equal(t, "Maria Lopez", chat.Patient.Name)
	assert.Equal(t, 34, chat.Patient.Age)
	assert.Empty(t, chat.CorrectDiagnosis)

	oracle.AddResponse(llm.MockText("Three days now."))
	reply, err := c.SendMessage(ctx, chat.ID, "How long have you had these symptoms?")
	require.NoError(t, err)
	assert.Equal(t, "patient", reply.Sender)
	assert.Equal(t, "Three days now.", reply.Content)

	msgs, err := c.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "doctor", msgs[0].Sender)

	oracle.AddResponse(llm.MockText("Diagnosis Accuracy: 2000/2000\nSymptom Gathering: 800/1000\nAppearance Questions: 0/500\nTactile Questions: 0/500\nOverall Approach: 700/1000\nScore: 3500\nFeedback: Ask about the skin next time."))
	res, err := c.EndGame(ctx, chat.ID, "Influenza")
	require.NoError(t, err)
	assert.Equal(t, 3500, res.Score)
	require.NotNil(t, res.Rubric)
	assert.Equal(t, 800, res.Rubric.SymptomGathering)
	assert.NotEmpty(t, res.CorrectDiagnosis)

	me, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3500, me.Points)

	top, err := c.TopUsers(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "house", top[0].Username)

	chats, err := c.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.True(t, chats[0].IsFinished)
	require.NotNil(t, chats[0].Score)
	assert.Equal(t, 3500, *chats[0].Score)

	require.NoError(t, c.DeleteChat(ctx, chat.ID))
	_, err = c.GetChat(ctx, chat.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_APIErrors(t *testing.T) {
	c, _ := newStack(t)
	ctx := context.Background()

	_, err := c.ListChats(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)

	err = c.Login(ctx, "ghost", "password123")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid_credentials", apiErr.Code)
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Profile(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Code)
}

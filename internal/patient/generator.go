package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/abhisek/anamnesis/internal/llm"
)

// Config controls persona generation.
type Config struct {
	// MaxTokens is the token budget for the persona response.
	MaxTokens int

	// Temperature controls oracle randomness (0.0-1.0).
	Temperature float64

	// Rand picks the disease. Nil uses the global source.
	Rand *rand.Rand
}

// DefaultConfig returns recommended generation settings.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1200,
		Temperature: 0.9,
	}
}

// Persona is the patient shown to the oracle on every later turn.
type Persona struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Sex        string `json:"sex"`
	Complaints string `json:"complaints"`
	History    string `json:"history"`
	ExtraInfo  string `json:"extra_info"`
}

// Generated is a new patient ready to be stored as a Chat.
type Generated struct {
	Difficulty Difficulty
	// Disease is the locally drawn ground truth. It never comes from the
	// oracle.
	Disease string
	Persona Persona
	// PatientData is Persona encoded as JSON.
	PatientData json.RawMessage
	// Responses maps canned question text to the prepared answer.
	Responses map[string]string
}

// Generator draws a disease and asks the oracle for a matching persona.
type Generator struct {
	provider llm.Provider
	config   Config
	mu       sync.Mutex
}

// New creates a Generator backed by provider.
func New(provider llm.Provider, cfg Config) *Generator {
	return &Generator{provider: provider, config: cfg}
}

// personaOutput is the raw oracle response before validation.
type personaOutput struct {
	PatientData      Persona           `json:"patient_data"`
	PatientResponses map[string]string `json:"patient_responses"`
}

// Generate creates a patient of difficulty d. Oracle transport failures
// are returned wrapped; unusable oracle output is a *GenerationError.
func (g *Generator) Generate(ctx context.Context, d Difficulty) (*Generated, error) {
	pool, err := Pool(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, d)
	}
	disease := g.pick(pool)

	ctx = llm.WithPurpose(ctx, llm.PurposePersona)
	resp, err := g.provider.Generate(ctx, llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(disease, d)},
		},
		Schema:      PersonaSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		if llm.IsUnavailable(err) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("persona generation: %w", err)
		}
		return nil, &GenerationError{Disease: disease, Reason: "oracle output rejected", Err: err}
	}

	var raw personaOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, &GenerationError{Disease: disease, Reason: "malformed JSON", Err: err}
	}

	if err := validatePersona(raw.PatientData); err != nil {
		return nil, &GenerationError{Disease: disease, Reason: err.Error()}
	}

	responses := make(map[string]string, len(CannedQuestions))
	for _, q := range CannedQuestions {
		answer := strings.TrimSpace(raw.PatientResponses[q.Key])
		if answer == "" {
			return nil, &GenerationError{Disease: disease, Reason: fmt.Sprintf("missing answer for %q", q.Key)}
		}
		responses[q.Text] = answer
	}

	data, err := json.Marshal(raw.PatientData)
	if err != nil {
		return nil, fmt.Errorf("encode persona: %w", err)
	}

	return &Generated{
		Difficulty:  d,
		Disease:     disease,
		Persona:     raw.PatientData,
		PatientData: data,
		Responses:   responses,
	}, nil
}

func (g *Generator) pick(pool []string) string {
	if g.config.Rand == nil {
		return pool[rand.IntN(len(pool))]
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return pool[g.config.Rand.IntN(len(pool))]
}

func validatePersona(p Persona) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("persona has no name")
	case p.Age < 0 || p.Age > 120:
		return fmt.Errorf("persona age %d out of range", p.Age)
	case strings.TrimSpace(p.Complaints) == "":
		return fmt.Errorf("persona has no complaints")
	}
	return nil
}

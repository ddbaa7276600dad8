package patient

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/abhisek/anamnesis/internal/llm"
)

const validOutput = `{
	"patient_data": {
		"name": "Maria Lopez",
		"age": 34,
		"sex": "female",
		"complaints": "Fever, aching muscles and a dry cough",
		"history": "No chronic illness",
		"extra_info": "Works as a librarian; several colleagues have been sick"
	},
	"patient_responses": {
		"symptoms": "I have a high fever, my whole body aches and I keep coughing.",
		"duration": "It started suddenly three days ago.",
		"allergies_chronic": "No allergies and nothing chronic.",
		"medications": "Just paracetamol for the fever.",
		"appearance": "I look pale and sweaty, no rashes.",
		"palpation": "My muscles are sore when pressed, nothing else hurts."
	}
}`

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestPoolsAreCumulative(t *testing.T) {
	easy, _ := Pool(Easy)
	medium, _ := Pool(Medium)
	hard, _ := Pool(Hard)

	for _, d := range easy {
		if !slices.Contains(medium, d) {
			t.Errorf("medium pool missing easy disease %q", d)
		}
	}
	for _, d := range medium {
		if !slices.Contains(hard, d) {
			t.Errorf("hard pool missing medium disease %q", d)
		}
	}
	if len(easy) >= len(medium) || len(medium) >= len(hard) {
		t.Errorf("pools must strictly grow: %d, %d, %d", len(easy), len(medium), len(hard))
	}
	if !slices.Contains(easy, "Influenza") {
		t.Error("easy pool should contain Influenza")
	}
}

func TestPoolInvalidDifficulty(t *testing.T) {
	if _, err := Pool("extreme"); !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("expected ErrInvalidDifficulty, got %v", err)
	}
}

func TestPoolReturnsCopy(t *testing.T) {
	p, _ := Pool(Easy)
	p[0] = "Mutated"
	again, _ := Pool(Easy)
	if again[0] == "Mutated" {
		t.Fatal("Pool must not expose internal slices")
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{"easy", Easy, false},
		{" Medium ", Medium, false},
		{"HARD", Hard, false},
		{"", "", true},
		{"expert", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDifficulty(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDifficulty(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerate_HappyPath(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(validOutput)})
	cfg := DefaultConfig()
	cfg.Rand = seeded()
	gen := New(mock, cfg)

	got, err := gen.Generate(context.Background(), Easy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pool, _ := Pool(Easy)
	if !slices.Contains(pool, got.Disease) {
		t.Errorf("disease %q not in easy pool", got.Disease)
	}
	if got.Persona.Name != "Maria Lopez" || got.Persona.Age != 34 {
		t.Errorf("unexpected persona: %+v", got.Persona)
	}
	if len(got.Responses) != len(CannedQuestions) {
		t.Fatalf("expected %d responses, got %d", len(CannedQuestions), len(got.Responses))
	}
	if got.Responses["How long have you had these symptoms?"] != "It started suddenly three days ago." {
		t.Errorf("responses not keyed by question text: %v", got.Responses)
	}

	var decoded Persona
	if err := json.Unmarshal(got.PatientData, &decoded); err != nil {
		t.Fatalf("patient data is not JSON: %v", err)
	}
	if decoded != got.Persona {
		t.Errorf("patient data %s does not match persona", got.PatientData)
	}
}

func TestGenerate_PromptCarriesDiseaseAndDirective(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(validOutput)})
	cfg := DefaultConfig()
	cfg.Rand = seeded()
	gen := New(mock, cfg)

	got, err := gen.Generate(context.Background(), Hard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := mock.LastCall()
	if req.Schema != PersonaSchema {
		t.Error("expected persona schema on request")
	}
	msg := req.Messages[0].Content
	if !strings.Contains(msg, "Disease: "+got.Disease) {
		t.Errorf("prompt does not name the drawn disease:\n%s", msg)
	}
	if !strings.Contains(msg, descriptionDirective(Hard)) {
		t.Errorf("prompt lacks hard directive:\n%s", msg)
	}
	for _, q := range CannedQuestions {
		if !strings.Contains(msg, q.Text) {
			t.Errorf("prompt lacks canned question %q", q.Text)
		}
	}
}

func TestGenerate_SelectionStaysInPool(t *testing.T) {
	for _, d := range Difficulties {
		pool, _ := Pool(d)
		mock := llm.NewMockProvider()
		mock.Fallback = func(llm.Request) llm.MockResponse {
			return llm.MockResponse{Content: json.RawMessage(validOutput)}
		}
		cfg := DefaultConfig()
		cfg.Rand = seeded()
		gen := New(mock, cfg)

		for range 50 {
			got, err := gen.Generate(context.Background(), d)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", d, err)
			}
			if !slices.Contains(pool, got.Disease) {
				t.Fatalf("%s: disease %q outside pool", d, got.Disease)
			}
		}
	}
}

func TestGenerate_DeterministicWithSeed(t *testing.T) {
	draw := func() string {
		mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(validOutput)})
		cfg := DefaultConfig()
		cfg.Rand = seeded()
		got, err := New(mock, cfg).Generate(context.Background(), Hard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return got.Disease
	}
	if a, b := draw(), draw(); a != b {
		t.Fatalf("same seed drew %q and %q", a, b)
	}
}

func TestGenerate_GenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{
			name: "schema violation",
			resp: llm.MockResponse{Content: json.RawMessage(`{"patient_data":{"name":"X"}}`)},
		},
		{
			name: "not json",
			resp: llm.MockResponse{Content: json.RawMessage(`Here is your patient: Maria`)},
		},
		{
			name: "empty canned answer",
			resp: llm.MockResponse{Content: json.RawMessage(strings.Replace(validOutput,
				`"Just paracetamol for the fever."`, `"  "`, 1))},
		},
		{
			name: "empty name",
			resp: llm.MockResponse{Content: json.RawMessage(strings.Replace(validOutput,
				`"Maria Lopez"`, `""`, 1))},
		},
		{
			name: "truncated",
			resp: llm.MockResponse{Err: &llm.ErrMaxTokensExceeded{Content: json.RawMessage(`{"patient_data":`)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := New(llm.NewMockProvider(tt.resp), DefaultConfig())
			_, err := gen.Generate(context.Background(), Medium)
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected *GenerationError, got %T (%v)", err, err)
			}
			if genErr.Disease == "" {
				t.Error("GenerationError should name the drawn disease")
			}
		})
	}
}

func TestGenerate_OracleUnavailableIsNotGenerationError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("connection refused")}})
	gen := New(mock, DefaultConfig())

	_, err := gen.Generate(context.Background(), Easy)
	if !llm.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		t.Fatal("transport failure must not be reported as GenerationError")
	}
}

func TestGenerate_InvalidDifficultySkipsOracle(t *testing.T) {
	mock := llm.NewMockProvider()
	gen := New(mock, DefaultConfig())

	_, err := gen.Generate(context.Background(), "nightmare")
	if !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("expected ErrInvalidDifficulty, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("oracle should not be called, got %d calls", mock.CallCount())
	}
}

package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"

	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/store"
)

// TranscriptMode selects what part of the conversation the evaluator sees.
type TranscriptMode string

const (
	// TranscriptFull sends every message, doctor and patient.
	TranscriptFull TranscriptMode = "full"
	// TranscriptDoctorQuestions sends only what the doctor asked.
	TranscriptDoctorQuestions TranscriptMode = "doctor-questions"
)

// Config holds configuration for the Evaluator.
type Config struct {
	Transcript  TranscriptMode
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transcript:  TranscriptFull,
		MaxTokens:   800,
		Temperature: 0.2,
	}
}

// Turn is one transcript line.
type Turn struct {
	Sender  string // store.SenderDoctor or store.SenderPatient
	Content string
}

// Input is everything the evaluator needs to score a finished game.
type Input struct {
	Difficulty       string
	CorrectDiagnosis string
	PatientData      json.RawMessage
	Transcript       []Turn
	Answer           string
}

// Evaluator scores a doctor's final answer with the oracle.
type Evaluator struct {
	provider llm.Provider
	cfg      Config
}

// New creates an Evaluator.
func New(provider llm.Provider, cfg Config) *Evaluator {
	if cfg.Transcript == "" {
		cfg.Transcript = TranscriptFull
	}
	return &Evaluator{provider: provider, cfg: cfg}
}

// Evaluate asks the oracle for a score and parses its reply. Transport
// failures are returned wrapped (see llm.IsUnavailable); a reply that does
// not follow the format is a *ParseError.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*Result, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeEvaluation)

	userMsg, err := buildEvaluationMessage(in, e.cfg.Transcript)
	if err != nil {
		return nil, fmt.Errorf("build evaluation prompt: %w", err)
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System: evaluationSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		if llm.IsUnavailable(err) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("evaluation: %w", err)
		}
		return nil, &ParseError{Reason: "oracle reply unusable", Err: err}
	}

	return ParseReply(resp.Text())
}

const evaluationSystemPrompt = `You are a senior physician grading a doctor in a diagnostic training game. The doctor interviewed a virtual patient and then gave a final diagnosis.

Score the doctor from 1 to 5000 using this rubric:
- Diagnosis accuracy: up to 2000
- Symptom gathering: up to 1000
- Questions about appearance (rashes, swelling, skin color): up to 500
- Questions about tactile or pressure sensations: up to 500
- Overall approach and reasoning: up to 1000

Reply in exactly this format, one item per line:
Diagnosis Accuracy: <points>/2000
Symptom Gathering: <points>/1000
Appearance Questions: <points>/500
Tactile Questions: <points>/500
Overall Approach: <points>/1000
Score: <total between 1 and 5000>
Feedback: <your feedback on how the doctor gathered information and reached the conclusion>

Do not add any other lines.`

var evaluationUserTemplate = template.Must(template.New("evaluation").Parse(`Difficulty: {{.Difficulty}}
Grading tone: {{.Tone}}

Actual diagnosis: {{.CorrectDiagnosis}}

Patient data:
{{.PatientData}}

{{if .QuestionsOnly}}Questions the doctor asked:
{{range .Transcript}}- {{.Content}}
{{else}}- (none)
{{end}}{{else}}Conversation:
{{range .Transcript}}{{.Sender}}: {{.Content}}
{{else}}(no messages)
{{end}}{{end}}
Doctor's final diagnosis: {{.Answer}}`))

// toneDirective sets grading strictness by difficulty.
func toneDirective(difficulty string) string {
	switch patient.Difficulty(difficulty) {
	case patient.Medium:
		return "Balanced. Expect a focused interview; the patient sometimes left details out."
	case patient.Hard:
		return "Strict on reasoning, forgiving on detail. The patient was an unreliable narrator; reward doctors who saw through confusing or irrelevant complaints."
	default:
		return "Encouraging. The patient described everything clearly, so the diagnosis should be right."
	}
}

func buildEvaluationMessage(in Input, mode TranscriptMode) (string, error) {
	transcript := in.Transcript
	questionsOnly := mode == TranscriptDoctorQuestions
	if questionsOnly {
		transcript = nil
		for _, t := range in.Transcript {
			if t.Sender == store.SenderDoctor {
				transcript = append(transcript, t)
			}
		}
	}

	patientData := string(in.PatientData)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, in.PatientData, "", "  "); err == nil {
		patientData = pretty.String()
	}

	data := struct {
		Input
		Tone          string
		PatientData   string
		Transcript    []Turn
		QuestionsOnly bool
	}{
		Input:         in,
		Tone:          toneDirective(in.Difficulty),
		PatientData:   patientData,
		Transcript:    transcript,
		QuestionsOnly: questionsOnly,
	}

	var buf bytes.Buffer
	if err := evaluationUserTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

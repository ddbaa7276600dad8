// Package result shows the graded outcome of a finished game.
package result

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/ui/components"
	"github.com/abhisek/anamnesis/internal/ui/layout"
	"github.com/abhisek/anamnesis/internal/ui/theme"
)

// MaxScore is the best possible game score.
const MaxScore = 5000

var rubricRows = []struct {
	label string
	max   int
	value func(*client.Rubric) int
}{
	{"Diagnosis accuracy", 2000, func(r *client.Rubric) int { return r.DiagnosisAccuracy }},
	{"Symptom gathering", 1000, func(r *client.Rubric) int { return r.SymptomGathering }},
	{"Appearance questions", 500, func(r *client.Rubric) int { return r.AppearanceQuestions }},
	{"Tactile questions", 500, func(r *client.Rubric) int { return r.TactileQuestions }},
	{"Overall approach", 1000, func(r *client.Rubric) int { return r.OverallApproach }},
}

// Outcome is everything the result screen displays.
type Outcome struct {
	PatientName      string
	Difficulty       string
	Answer           string
	CorrectDiagnosis string
	Score            int
	Feedback         string
	Rubric           *client.Rubric
}

// FromChat builds an Outcome from a finished chat.
func FromChat(c *client.Chat) Outcome {
	o := Outcome{
		PatientName:      c.Patient.Name,
		Difficulty:       c.Difficulty,
		Answer:           c.Diagnosis,
		CorrectDiagnosis: c.CorrectDiagnosis,
		Feedback:         c.Feedback,
		Rubric:           c.Rubric,
	}
	if c.Score != nil {
		o.Score = *c.Score
	}
	return o
}

// ResultScreen displays the score, the rubric and the evaluator's
// feedback.
type ResultScreen struct {
	outcome Outcome
}

var _ screen.Screen = (*ResultScreen)(nil)
var _ screen.KeyHintProvider = (*ResultScreen)(nil)

// New creates a new ResultScreen.
func New(o Outcome) *ResultScreen {
	return &ResultScreen{outcome: o}
}

func (s *ResultScreen) Init() tea.Cmd {
	return nil
}

func (s *ResultScreen) Title() string {
	return "Diagnosis Result"
}

func (s *ResultScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *ResultScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, router.Pop
		}
	}
	return s, nil
}

// verdict is the one-line headline for a score.
func verdict(score int) (string, lipgloss.Style) {
	switch {
	case score >= 4000:
		return "Excellent work, doctor.", lipgloss.NewStyle().Foreground(theme.Success).Bold(true)
	case score >= 2500:
		return "A reasonable workup.", lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	default:
		return "Back to the textbooks.", lipgloss.NewStyle().Foreground(theme.Error).Bold(true)
	}
}

func (s *ResultScreen) View(width, height int) string {
	o := s.outcome
	center := func(str string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, str)
	}
	barWidth := min(width-8, 64)

	var b strings.Builder
	b.WriteString("\n")

	headline, style := verdict(o.Score)
	b.WriteString(center(style.Render(headline)))
	b.WriteString("\n\n")

	b.WriteString(center(lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		Render(fmt.Sprintf("%d / %d", o.Score, MaxScore))))
	b.WriteString("\n")
	b.WriteString(center(components.NewScoreBar("", o.Score, MaxScore, barWidth).View()))
	b.WriteString("\n\n")

	answer := o.Answer
	if answer == "" {
		answer = "(none)"
	}
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text).
		Render(fmt.Sprintf("Your diagnosis: %s", answer))))
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).
		Render(fmt.Sprintf("Correct diagnosis: %s", o.CorrectDiagnosis))))
	b.WriteString("\n")
	if o.PatientName != "" {
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim).
			Render(fmt.Sprintf("%s · %s", o.PatientName, o.Difficulty))))
		b.WriteString("\n")
	}

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", barWidth))

	if o.Rubric != nil {
		b.WriteString("\n")
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim).Render("Breakdown")))
		b.WriteString("\n")
		b.WriteString(center(divider))
		b.WriteString("\n")
		for _, row := range rubricRows {
			bar := components.ScoreBar{
				Label:      row.label,
				LabelWidth: 20,
				Value:      row.value(o.Rubric),
				Max:        row.max,
				Width:      barWidth,
			}
			b.WriteString(center(bar.View()))
			b.WriteString("\n")
		}
	}

	if o.Feedback != "" {
		b.WriteString("\n")
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim).Render("Feedback")))
		b.WriteString("\n")
		b.WriteString(center(divider))
		b.WriteString("\n")
		b.WriteString(center(lipgloss.NewStyle().
			Width(barWidth).
			Foreground(theme.Text).
			Render(o.Feedback)))
		b.WriteString("\n")
	}

	return b.String()
}

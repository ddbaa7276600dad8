package evaluation

import (
	"fmt"
	"strconv"
	"strings"
)

// Score bounds.
const (
	MinScore = 1
	MaxScore = 5000
)

// Rubric is the score breakdown the evaluator is asked for. Components the
// reply omitted are zero.
type Rubric struct {
	DiagnosisAccuracy   int `json:"diagnosis_accuracy"`
	SymptomGathering    int `json:"symptom_gathering"`
	AppearanceQuestions int `json:"appearance_questions"`
	TactileQuestions    int `json:"tactile_questions"`
	OverallApproach     int `json:"overall_approach"`
}

// Total sums all components.
func (r Rubric) Total() int {
	return r.DiagnosisAccuracy + r.SymptomGathering + r.AppearanceQuestions +
		r.TactileQuestions + r.OverallApproach
}

// rubricLine describes one optional labeled component line.
type rubricLine struct {
	label string
	cap   int
	field func(*Rubric) *int
}

var rubricLines = []rubricLine{
	{"Diagnosis Accuracy:", 2000, func(r *Rubric) *int { return &r.DiagnosisAccuracy }},
	{"Symptom Gathering:", 1000, func(r *Rubric) *int { return &r.SymptomGathering }},
	{"Appearance Questions:", 500, func(r *Rubric) *int { return &r.AppearanceQuestions }},
	{"Tactile Questions:", 500, func(r *Rubric) *int { return &r.TactileQuestions }},
	{"Overall Approach:", 1000, func(r *Rubric) *int { return &r.OverallApproach }},
}

// Result is a parsed evaluation.
type Result struct {
	Score    int
	Feedback string
	// Rubric is nil when the reply carried no component lines.
	Rubric *Rubric
}

// ParseError indicates the evaluator reply did not follow the labeled-line
// format. The chat is left unfinished.
type ParseError struct {
	Reason string
	Reply  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparsable evaluation: %s: %v", e.Reason, e.Err)
	}
	return "unparsable evaluation: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseReply extracts the score, feedback and optional rubric from an
// evaluator reply. The first "Score:" line wins and must hold an integer in
// [1, 5000]. Every "Feedback:" line contributes, label stripped, and the
// joined feedback must not be empty. Rubric lines are optional; any that
// appear must be within their cap and the components together must not
// exceed 5000. Anything else in the reply, including an echoed
// "Correct Diagnosis:" line, is ignored.
func ParseReply(reply string) (*Result, error) {
	var (
		score     int
		haveScore bool
		feedback  []string
		rubric    Rubric
		seen      = make(map[string]bool)
	)

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)

		if v, ok := strings.CutPrefix(line, "Score:"); ok {
			if haveScore {
				continue
			}
			n, err := parseBounded(v, MaxScore)
			if err != nil {
				return nil, &ParseError{Reason: "bad score line", Reply: reply, Err: err}
			}
			if n < MinScore {
				return nil, &ParseError{Reason: fmt.Sprintf("score %d below %d", n, MinScore), Reply: reply}
			}
			score, haveScore = n, true
			continue
		}

		if v, ok := strings.CutPrefix(line, "Feedback:"); ok {
			if v = strings.TrimSpace(v); v != "" {
				feedback = append(feedback, v)
			}
			continue
		}

		for _, rl := range rubricLines {
			v, ok := strings.CutPrefix(line, rl.label)
			if !ok {
				continue
			}
			if seen[rl.label] {
				break
			}
			n, err := parseBounded(v, rl.cap)
			if err != nil {
				return nil, &ParseError{Reason: "bad rubric line " + strings.TrimSuffix(rl.label, ":"), Reply: reply, Err: err}
			}
			*rl.field(&rubric) = n
			seen[rl.label] = true
			break
		}
	}

	if !haveScore {
		return nil, &ParseError{Reason: "no Score line", Reply: reply}
	}
	if len(feedback) == 0 {
		return nil, &ParseError{Reason: "no Feedback line", Reply: reply}
	}

	res := &Result{Score: score, Feedback: strings.Join(feedback, "\n")}
	if len(seen) > 0 {
		if total := rubric.Total(); total > MaxScore {
			return nil, &ParseError{Reason: fmt.Sprintf("rubric total %d exceeds %d", total, MaxScore), Reply: reply}
		}
		res.Rubric = &rubric
	}
	return res, nil
}

// parseBounded reads "N" or "N/CAP" and checks 0 <= N <= limit. A stated
// CAP must equal limit.
func parseBounded(s string, limit int) (int, error) {
	s = strings.TrimSpace(s)
	num, capText, hasCap := strings.Cut(s, "/")

	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if hasCap {
		c, err := strconv.Atoi(strings.TrimSpace(capText))
		if err != nil || c != limit {
			return 0, fmt.Errorf("%q: expected maximum %d", s, limit)
		}
	}
	if n < 0 || n > limit {
		return 0, fmt.Errorf("%d out of range [0, %d]", n, limit)
	}
	return n, nil
}

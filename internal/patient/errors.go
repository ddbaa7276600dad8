package patient

import "fmt"

// GenerationError indicates the oracle answered but the persona could not
// be used: malformed JSON, schema violation, truncation or missing answers.
// Transport failures are not GenerationErrors; check llm.IsUnavailable.
type GenerationError struct {
	Disease string
	Reason  string
	Err     error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generate patient for %q: %s", e.Disease, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

package patient

import "github.com/abhisek/anamnesis/internal/llm"

// PersonaSchema is the structured output requested from the oracle. Every
// property is required and no extras are allowed, which strict JSON modes
// demand.
var PersonaSchema = &llm.Schema{
	Name:        "patient-persona",
	Description: "A virtual patient and the patient's prepared answers to six standard questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patient_data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":       map[string]any{"type": "string", "description": "Full name"},
					"age":        map[string]any{"type": "integer", "description": "Age in years"},
					"sex":        map[string]any{"type": "string", "enum": []any{"male", "female"}},
					"complaints": map[string]any{"type": "string", "description": "Main complaints in the patient's own words"},
					"history":    map[string]any{"type": "string", "description": "Relevant medical history"},
					"extra_info": map[string]any{"type": "string", "description": "Lifestyle, occupation and other context"},
				},
				"required":             []any{"name", "age", "sex", "complaints", "history", "extra_info"},
				"additionalProperties": false,
			},
			"patient_responses": map[string]any{
				"type":                 "object",
				"properties":           responseProperties(),
				"required":             responseKeys(),
				"additionalProperties": false,
			},
		},
		"required":             []any{"patient_data", "patient_responses"},
		"additionalProperties": false,
	},
}

func responseProperties() map[string]any {
	props := make(map[string]any, len(CannedQuestions))
	for _, q := range CannedQuestions {
		props[q.Key] = map[string]any{"type": "string", "description": q.Text}
	}
	return props
}

func responseKeys() []any {
	keys := make([]any, len(CannedQuestions))
	for i, q := range CannedQuestions {
		keys[i] = q.Key
	}
	return keys
}

package patient

import (
	"fmt"
	"strings"
)

const systemPrompt = `You create virtual patients for a diagnostic training game played by doctors.

Rules:
- The patient suffers from exactly the disease given in the request. Never name the disease or hint at it directly.
- Fill patient_data with a realistic adult or child: name, age, sex, main complaints, medical history and extra context.
- Fill patient_responses with what the patient would answer to each of the six standard questions, in the first person and in plain language.
- Follow the description quality directive. It controls how reliable the patient is as a narrator.
- Return only the JSON object described by the schema.`

// descriptionDirective is how faithfully a patient of tier d describes the
// condition.
func descriptionDirective(d Difficulty) string {
	switch d {
	case Medium:
		return "Mostly accurate. The patient may leave out some details unless asked directly."
	case Hard:
		return "Inaccurate. The patient may confuse symptoms, downplay important ones and report irrelevant complaints."
	default:
		return "Accurate and detailed. The patient describes symptoms clearly and completely."
	}
}

// buildUserMessage constructs the persona request for disease at tier d.
func buildUserMessage(disease string, d Difficulty) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Disease: %s\n", disease)
	fmt.Fprintf(&b, "Difficulty: %s\n", d)
	fmt.Fprintf(&b, "Description quality: %s\n", descriptionDirective(d))

	b.WriteString("\nStandard questions (patient_responses keys):\n")
	for _, q := range CannedQuestions {
		fmt.Fprintf(&b, "- %s: %s\n", q.Key, q.Text)
	}

	return b.String()
}

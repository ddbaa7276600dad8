package session

import (
	"fmt"
	"strings"

	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/store"
)

const patientRolePrompt = `You are role-playing a patient in a doctor's office. Stay in character at all times.

Rules:
- Answer only as the patient, in the first person and in plain language.
- Never name your diagnosis and never use medical jargon the patient would not know.
- If the doctor's question means the same as one of the prepared questions, adapt the prepared answer instead of inventing a new one.
- Otherwise answer from the patient data, consistent with everything you said before.
- Follow the response style.
- Keep answers short: one to four sentences.`

// styleDirective is how reliably a patient of tier d answers.
func styleDirective(d string) string {
	switch patient.Difficulty(d) {
	case patient.Medium:
		return "Mostly accurate, but occasionally vague. Leave out a detail now and then unless asked directly."
	case patient.Hard:
		return "Confused and sometimes off-topic. Mix up symptoms, downplay important ones and mention irrelevant complaints."
	default:
		return "Accurate and clear. Answer exactly what was asked."
	}
}

// buildReplySystem assembles the patient's standing instructions from the
// stored chat.
func buildReplySystem(chat *store.Chat) string {
	var b strings.Builder

	b.WriteString(patientRolePrompt)
	b.WriteString("\n\nPatient data:\n")
	b.Write(chat.PatientData)

	b.WriteString("\n\nPrepared answers:\n")
	for _, q := range patient.CannedQuestions {
		if a, ok := chat.PatientResponses[q.Text]; ok {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", q.Text, a)
		}
	}

	fmt.Fprintf(&b, "\nResponse style: %s", styleDirective(chat.Difficulty))
	return b.String()
}

// buildReplyMessages turns the last turns of the conversation plus the new
// doctor message into oracle messages.
func buildReplyMessages(history []store.Message, turns int, doctorText string) []llm.Message {
	if turns >= 0 && len(history) > turns {
		history = history[len(history)-turns:]
	}
	// Some providers require the conversation to open with a user turn.
	for len(history) > 0 && history[0].Sender == store.SenderPatient {
		history = history[1:]
	}

	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleUser
		if m.Sender == store.SenderPatient {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: doctorText})
}

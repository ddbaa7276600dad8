package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Chat is one game: a generated patient, the doctor's interview and, once
// finished, the scored diagnosis.
type Chat struct {
	ent.Schema
}

func (Chat) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Text("patient_data").
			Comment("Persona JSON shown to the doctor"),
		field.Text("patient_responses").
			Comment("Canned answers keyed by question, JSON"),
		field.String("difficulty").
			MaxLen(10),
		field.String("correct_diagnosis").
			Comment("Disease drawn for the patient, hidden until finished"),
		field.Bool("is_finished").
			Default(false),
		field.Text("diagnosis").
			Optional().
			Nillable(),
		field.Int("score").
			Optional().
			Nillable(),
		field.Text("feedback").
			Optional().
			Nillable(),
		field.Text("rubric").
			Optional().
			Nillable(),
		field.Time("start_time").
			Default(time.Now).
			Immutable(),
		field.Time("end_time").
			Optional().
			Nillable(),
		field.String("claim_token").
			Optional().
			Nillable().
			Comment("Evaluation lease holder"),
		field.Time("claimed_at").
			Optional().
			Nillable(),
		field.Int64("doctor_id").
			Immutable(),
	}
}

func (Chat) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("doctor_id", "start_time"),
	}
}

package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Message is one turn of a chat.
type Message struct {
	ent.Schema
}

func (Message) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.String("sender").
			MaxLen(10).
			Comment("doctor or patient"),
		field.Text("content"),
		field.Time("timestamp").
			Immutable().
			Comment("Strictly increasing within a chat"),
		field.Int64("chat_id").
			Immutable(),
	}
}

func (Message) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("chat_id", "timestamp"),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// User is a player account. Points accumulate across finished games; rank is
// recomputed from points after every finish.
type User struct {
	ent.Schema
}

func (User) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.String("username").
			MaxLen(150).
			Unique().
			Comment("Login name, letters, digits and @.+-_"),
		field.String("email").
			Default(""),
		field.String("password_hash").
			Sensitive().
			Comment("bcrypt hash"),
		field.Int("points").
			Default(0),
		field.Int("rank").
			Optional().
			Nillable().
			Comment("1-based leaderboard position, unset until the first recompute"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (User) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("points", "id"),
	}
}

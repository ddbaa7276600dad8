package store

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	entschema "github.com/abhisek/anamnesis/ent/schema"
)

// Tables are built from the entity definitions in ent/schema.
var (
	UsersTable            = mustTable("users", "user", entschema.User{})
	ProfilesTable         = mustTable("profiles", "profile", entschema.Profile{})
	ChatsTable            = mustTable("chats", "chat", entschema.Chat{})
	MessagesTable         = mustTable("messages", "message", entschema.Message{})
	LLMRequestEventsTable = mustTable("llm_request_events", "llmrequestevent", entschema.LLMRequestEvent{})

	// Tables holds all the tables in the schema, parents before children.
	Tables = []*schema.Table{
		UsersTable,
		ProfilesTable,
		ChatsTable,
		MessagesTable,
		LLMRequestEventsTable,
	}
)

func init() {
	foreignKey("profiles_users_profile", ProfilesTable, "user_id", UsersTable)
	foreignKey("chats_users_chats", ChatsTable, "doctor_id", UsersTable)
	foreignKey("messages_chats_messages", MessagesTable, "chat_id", ChatsTable)
}

// mustTable converts an entity's field and index descriptors into a
// migration table. The "id" field becomes the auto-increment primary key.
func mustTable(name, indexPrefix string, entity ent.Interface) *schema.Table {
	t := &schema.Table{Name: name}
	for _, f := range entity.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			panic(fmt.Sprintf("store: %s.%s: %v", name, d.Name, d.Err))
		}
		col := &schema.Column{
			Name:     d.Name,
			Type:     d.Info.Type,
			Size:     int64(d.Size),
			Unique:   d.Unique,
			Nullable: d.Optional,
		}
		switch v := d.Default.(type) {
		case string, int, int64, bool:
			col.Default = v
		}
		if d.Name == "id" {
			col.Increment = true
			t.PrimaryKey = []*schema.Column{col}
		}
		t.Columns = append(t.Columns, col)
	}
	if t.PrimaryKey == nil {
		panic("store: table " + name + " has no id field")
	}

	for _, idx := range entity.Indexes() {
		d := idx.Descriptor()
		cols := make([]*schema.Column, len(d.Fields))
		for i, f := range d.Fields {
			c := column(t, f)
			if c == nil {
				panic(fmt.Sprintf("store: index on unknown column %s.%s", name, f))
			}
			cols[i] = c
		}
		t.Indexes = append(t.Indexes, &schema.Index{
			Name:    indexPrefix + "_" + strings.Join(d.Fields, "_"),
			Unique:  d.Unique,
			Columns: cols,
		})
	}
	return t
}

// foreignKey adds a cascading reference from t.column to ref's primary key.
func foreignKey(symbol string, t *schema.Table, name string, ref *schema.Table) {
	col := column(t, name)
	if col == nil {
		panic(fmt.Sprintf("store: foreign key on unknown column %s.%s", t.Name, name))
	}
	t.ForeignKeys = append(t.ForeignKeys, &schema.ForeignKey{
		Symbol:     symbol,
		Columns:    []*schema.Column{col},
		RefTable:   ref,
		RefColumns: ref.PrimaryKey,
		OnDelete:   schema.Cascade,
	})
}

func column(t *schema.Table, name string) *schema.Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Migrate creates missing tables, columns and indexes. It never drops
// anything.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(entsql.OpenDB(s.dialect, s.db))
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type messageRepo struct {
	db      *sql.DB
	b       *entsql.DialectBuilder
	dialect string
}

// lockChatQuery selects the chat row, locking it on Postgres so concurrent
// exchanges on one chat read the last timestamp one at a time. SQLite runs a
// single writer connection and needs no lock.
func lockChatQuery(b *entsql.DialectBuilder, d string, chatID int64) (string, []any) {
	sel := b.Select("id").
		From(b.Table(ChatsTable.Name)).
		Where(entsql.EQ("id", chatID))
	if d == dialect.Postgres {
		sel.ForUpdate()
	}
	return sel.Query()
}

func (r *messageRepo) AppendExchange(ctx context.Context, chatID int64, doctorText, patientText string, at time.Time) (*Message, *Message, error) {
	doctor := &Message{ChatID: chatID, Sender: SenderDoctor, Content: doctorText}
	patient := &Message{ChatID: chatID, Sender: SenderPatient, Content: patientText}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		lockQuery, lockArgs := lockChatQuery(r.b, r.dialect, chatID)
		var id int64
		if err := tx.QueryRowContext(ctx, lockQuery, lockArgs...).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock chat: %w", err)
		}

		query, args := r.b.Select("timestamp").
			From(r.b.Table(MessagesTable.Name)).
			Where(entsql.EQ("chat_id", chatID)).
			OrderBy(entsql.Desc("id")).
			Limit(1).
			Query()

		ts := at.UTC().Truncate(time.Microsecond)
		var last time.Time
		err := tx.QueryRowContext(ctx, query, args...).Scan(&last)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("load last message time: %w", err)
		case !ts.After(last):
			ts = last.UTC().Add(time.Microsecond)
		}

		doctor.Timestamp = ts
		patient.Timestamp = ts.Add(time.Microsecond)

		for _, m := range []*Message{doctor, patient} {
			query, args := r.b.Insert(MessagesTable.Name).
				Columns("chat_id", "sender", "content", "timestamp").
				Values(m.ChatID, m.Sender, m.Content, m.Timestamp).
				Returning("id").
				Query()
			if err := tx.QueryRowContext(ctx, query, args...).Scan(&m.ID); err != nil {
				return fmt.Errorf("insert %s message: %w", m.Sender, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return doctor, patient, nil
}

func (r *messageRepo) ListByChat(ctx context.Context, chatID int64) ([]Message, error) {
	query, args := r.b.Select("id", "chat_id", "sender", "content", "timestamp").
		From(r.b.Table(MessagesTable.Name)).
		Where(entsql.EQ("chat_id", chatID)).
		OrderBy("id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

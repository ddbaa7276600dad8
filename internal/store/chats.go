package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var chatColumns = []string{
	"id", "doctor_id", "patient_data", "patient_responses", "difficulty",
	"correct_diagnosis", "is_finished", "diagnosis", "score", "feedback",
	"rubric", "start_time", "end_time",
}

type chatRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *chatRepo) Create(ctx context.Context, in NewChat) (*Chat, error) {
	responses, err := json.Marshal(in.PatientResponses)
	if err != nil {
		return nil, fmt.Errorf("marshal patient responses: %w", err)
	}
	start := in.StartTime.UTC()
	if in.StartTime.IsZero() {
		start = now()
	}

	query, args := r.b.Insert(ChatsTable.Name).
		Columns("doctor_id", "patient_data", "patient_responses", "difficulty",
			"correct_diagnosis", "is_finished", "start_time").
		Values(in.DoctorID, string(in.PatientData), string(responses), in.Difficulty,
			in.CorrectDiagnosis, false, start).
		Returning("id").
		Query()

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	return &Chat{
		ID:               id,
		DoctorID:         in.DoctorID,
		PatientData:      in.PatientData,
		PatientResponses: in.PatientResponses,
		Difficulty:       in.Difficulty,
		CorrectDiagnosis: in.CorrectDiagnosis,
		StartTime:        start,
	}, nil
}

func (r *chatRepo) Get(ctx context.Context, id int64) (*Chat, error) {
	query, args := r.b.Select(chatColumns...).
		From(r.b.Table(ChatsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	c, err := scanChat(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", id, err)
	}
	return c, nil
}

func (r *chatRepo) ListByDoctor(ctx context.Context, doctorID int64, limit int) ([]Chat, error) {
	sel := r.b.Select(chatColumns...).
		From(r.b.Table(ChatsTable.Name)).
		Where(entsql.EQ("doctor_id", doctorID)).
		OrderBy(entsql.Desc("start_time"), entsql.Desc("id"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *chatRepo) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := r.b.Delete(MessagesTable.Name).Where(entsql.EQ("chat_id", id)).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}

		query, args = r.b.Delete(ChatsTable.Name).Where(entsql.EQ("id", id)).Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *chatRepo) ClaimEvaluation(ctx context.Context, id int64, leaseTTL time.Duration) (string, error) {
	token := uuid.NewString()
	at := now()

	query, args := r.b.Update(ChatsTable.Name).
		Set("claim_token", token).
		Set("claimed_at", at).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("is_finished", false),
			entsql.Or(
				entsql.IsNull("claim_token"),
				entsql.LT("claimed_at", at.Add(-leaseTTL)),
			),
		)).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("claim chat %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("claim chat %d: %w", id, err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return "", err
		}
		return "", ErrConflict
	}
	return token, nil
}

func (r *chatRepo) ReleaseEvaluation(ctx context.Context, id int64, token string) error {
	query, args := r.b.Update(ChatsTable.Name).
		SetNull("claim_token").
		SetNull("claimed_at").
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("claim_token", token),
			entsql.EQ("is_finished", false),
		)).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("release chat %d: %w", id, err)
	}
	return nil
}

func (r *chatRepo) Finish(ctx context.Context, id int64, token string, data FinishData) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		upd := r.b.Update(ChatsTable.Name).
			Set("diagnosis", data.Diagnosis).
			Set("score", data.Score).
			Set("feedback", data.Feedback).
			Set("end_time", data.EndTime.UTC()).
			Set("is_finished", true).
			SetNull("claim_token").
			SetNull("claimed_at")
		if len(data.Rubric) > 0 {
			upd = upd.Set("rubric", string(data.Rubric))
		}
		query, args := upd.Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("claim_token", token),
			entsql.EQ("is_finished", false),
		)).Query()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("finish chat %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("finish chat %d: %w", id, err)
		}
		if n == 0 {
			return ErrConflict
		}

		query, args = r.b.Select("doctor_id").
			From(r.b.Table(ChatsTable.Name)).
			Where(entsql.EQ("id", id)).
			Query()
		var doctorID int64
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&doctorID); err != nil {
			return fmt.Errorf("load doctor of chat %d: %w", id, err)
		}

		query, args = r.b.Update(UsersTable.Name).
			Add("points", data.Score).
			Where(entsql.EQ("id", doctorID)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("credit points to user %d: %w", doctorID, err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(sc rowScanner) (*Chat, error) {
	var (
		c           Chat
		patientData string
		responses   string
		diagnosis   sql.NullString
		score       sql.NullInt64
		feedback    sql.NullString
		rubric      sql.NullString
		endTime     sql.NullTime
	)
	err := sc.Scan(&c.ID, &c.DoctorID, &patientData, &responses, &c.Difficulty,
		&c.CorrectDiagnosis, &c.IsFinished, &diagnosis, &score, &feedback,
		&rubric, &c.StartTime, &endTime)
	if err != nil {
		return nil, err
	}

	c.PatientData = json.RawMessage(patientData)
	if responses != "" {
		if err := json.Unmarshal([]byte(responses), &c.PatientResponses); err != nil {
			return nil, fmt.Errorf("decode patient responses: %w", err)
		}
	}
	c.Diagnosis = diagnosis.String
	c.Feedback = feedback.String
	if score.Valid {
		v := int(score.Int64)
		c.Score = &v
	}
	if rubric.Valid && rubric.String != "" {
		c.Rubric = json.RawMessage(rubric.String)
	}
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	return &c, nil
}

// now returns the current time in the precision every supported dialect
// round-trips.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

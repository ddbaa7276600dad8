package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type profileRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *profileRepo) Create(ctx context.Context, userID int64) (*Profile, error) {
	created := now()
	query, args := r.b.Insert(ProfilesTable.Name).
		Columns("user_id", "created_at").
		Values(userID, created).
		Returning("id").
		Query()

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return &Profile{ID: id, UserID: userID, CreatedAt: created}, nil
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID int64) (*Profile, error) {
	query, args := r.b.Select("id", "user_id", "created_at").
		From(r.b.Table(ProfilesTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var p Profile
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.UserID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

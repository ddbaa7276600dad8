package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgconn"
)

var userColumns = []string{"id", "username", "email", "password_hash", "points", "rank", "created_at"}

type userRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *userRepo) Create(ctx context.Context, in NewUser) (*User, error) {
	created := now()
	query, args := r.b.Insert(UsersTable.Name).
		Columns("username", "email", "password_hash", "points", "created_at").
		Values(in.Username, in.Email, in.PasswordHash, 0, created).
		Returning("id").
		Query()

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{
		ID:           id,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    created,
	}, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, entsql.EQ("id", id))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, entsql.EQ("username", username))
}

func (r *userRepo) getOne(ctx context.Context, pred *entsql.Predicate) (*User, error) {
	query, args := r.b.Select(userColumns...).
		From(r.b.Table(UsersTable.Name)).
		Where(pred).
		Query()

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *userRepo) Top(ctx context.Context, n int) ([]User, error) {
	sel := r.b.Select(userColumns...).
		From(r.b.Table(UsersTable.Name)).
		OrderBy(entsql.Desc("points"), "id")
	if n > 0 {
		sel = sel.Limit(n)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *userRepo) RecomputeRanks(ctx context.Context) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := r.b.Select("id").
			From(r.b.Table(UsersTable.Name)).
			OrderBy(entsql.Desc("points"), "id").
			Query()

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan user id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("load users: %w", err)
		}

		for i, id := range ids {
			query, args := r.b.Update(UsersTable.Name).
				Set("rank", i+1).
				Where(entsql.EQ("id", id)).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("set rank of user %d: %w", id, err)
			}
		}
		return nil
	})
}

func scanUser(sc rowScanner) (*User, error) {
	var (
		u    User
		rank sql.NullInt64
	)
	if err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Points, &rank, &u.CreatedAt); err != nil {
		return nil, err
	}
	if rank.Valid {
		v := int(rank.Int64)
		u.Rank = &v
	}
	return &u, nil
}

// isUniqueViolation recognizes unique-constraint errors from both drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

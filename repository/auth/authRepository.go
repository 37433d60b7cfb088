package authrepo

import (
	"context"
	"database/sql"
	"errors"

	"librarypos/model"
)

type Repo interface {
	Create(ctx context.Context, tx *sql.Tx, u *model.User) error
	ByUsername(ctx context.Context, username string) (*model.User, error)
	ByID(ctx context.Context, id int64) (*model.User, error)
	SetActive(ctx context.Context, tx *sql.Tx, id int64, active bool) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Create(ctx context.Context, tx *sql.Tx, u *model.User) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, user_type, is_active)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		u.Username, u.PasswordHash, u.UserType, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *repo) ByUsername(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, user_type, is_active, created_at
        FROM users
        WHERE lower(username) = lower($1)`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.UserType, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, user_type, is_active, created_at
        FROM users
        WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.UserType, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	return err
}

func (r *repo) SetActive(ctx context.Context, tx *sql.Tx, id int64, active bool) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

func (r *repo) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

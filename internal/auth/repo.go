package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Account is a staff operator login for the reporting API. Faculty never
// log in themselves; their data is synced from the remote, not self-served.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, a Account) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`, a.ID, a.Username, a.Email, a.PasswordHash)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	return r.getOne(ctx, `WHERE LOWER(email) = ?`, email)
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.getOne(ctx, `WHERE username = ?`, strings.TrimSpace(username))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *Repo) getOne(ctx context.Context, where string, arg any) (*Account, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, token_version, created_at
		FROM accounts `+where, arg)

	var a Account
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.TokenVersion, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT token_version FROM accounts WHERE id = ?
	`, id)

	var version int
	if err := row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

// UpdatePasswordAndBumpTokenVersion swaps the hash and invalidates every
// token issued before the change in one statement.
func (r *Repo) UpdatePasswordAndBumpTokenVersion(ctx context.Context, id, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update password: account not found")
	}
	return nil
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump token version rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bump token version: account not found")
	}
	return nil
}

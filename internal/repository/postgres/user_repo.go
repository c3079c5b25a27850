package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `uid, COALESCE(email, ''), display_name, provider_id, provider_subject, COALESCE(pwd_hash, ''), created_at`

// Create inserts a new user row. Email is stored lower-cased; empty email and hash become NULL.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (uid, email, display_name, provider_id, provider_subject, pwd_hash)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q,
		u.UID, nullIfEmpty(strings.ToLower(u.Email)), u.DisplayName, u.ProviderID, u.ProviderSubject, nullIfEmpty(u.PwdHash))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return dbErr(err)
}

// GetByUID selects a user by uid.
func (r *UserRepo) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE uid=$1`, uid)
}

// GetByEmail selects a password user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1 AND provider_id='password'`, strings.ToLower(email))
}

// GetByProvider selects a user by federated identity.
func (r *UserRepo) GetByProvider(ctx context.Context, providerID, subject string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider_id=$1 AND provider_subject=$2`, providerID, subject)
}

func (r *UserRepo) getOne(ctx context.Context, q string, args ...any) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, args...).Scan(
		&u.UID, &u.Email, &u.DisplayName, &u.ProviderID, &u.ProviderSubject, &u.PwdHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, dbErr(err)
	}
	return &u, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

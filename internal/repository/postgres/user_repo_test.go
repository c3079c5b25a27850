package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"uid", "email", "display_name", "provider_id", "provider_subject", "pwd_hash", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		UID:             "uid-1",
		Email:           "Alice@Example.com",
		DisplayName:     "Alice",
		ProviderID:      model.ProviderPassword,
		ProviderSubject: "uid-1",
		PwdHash:         "h",
	}
	email, hash := "alice@example.com", "h"

	mock.ExpectExec(`INSERT INTO users \(uid, email, display_name, provider_id, provider_subject, pwd_hash\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(u.UID, &email, u.DisplayName, u.ProviderID, u.ProviderSubject, &hash).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.UID, &email, u.DisplayName, u.ProviderID, u.ProviderSubject, &hash).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_FederatedStoresNullHash(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	u := &model.User{UID: "g-1", ProviderID: model.ProviderGoogle, ProviderSubject: "1234"}

	var none *string
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.UID, none, "", u.ProviderID, u.ProviderSubject, none).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByUID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`SELECT uid, .* FROM users WHERE uid=\$1`).
		WithArgs("uid-1").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("uid-1", "a@b.c", "A", model.ProviderPassword, "uid-1", "h", now))
	u, err := r.GetByUID(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, "uid-1", u.UID)
	require.Equal(t, "h", u.PwdHash)

	mock.ExpectQuery(`SELECT uid, .* FROM users WHERE uid=\$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByUID(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail_LowerCases(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE email=\$1 AND provider_id='password'`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("uid-2", "a@b.c", "", model.ProviderPassword, "uid-2", "h", time.Now()))
	u, err := r.GetByEmail(context.Background(), "A@B.c")
	require.NoError(t, err)
	require.Equal(t, "uid-2", u.UID)
}

func TestUserRepo_GetByProvider(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`FROM users WHERE provider_id=\$1 AND provider_subject=\$2`).
		WithArgs(model.ProviderGoogle, "sub").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("uid-3", "g@b.c", "G", model.ProviderGoogle, "sub", "", time.Now()))
	u, err := r.GetByProvider(ctx, model.ProviderGoogle, "sub")
	require.NoError(t, err)
	require.Equal(t, "uid-3", u.UID)
	require.Empty(t, u.PwdHash)

	mock.ExpectQuery(`FROM users WHERE provider_id=\$1 AND provider_subject=\$2`).
		WithArgs(model.ProviderGoogle, "other").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByProvider(ctx, model.ProviderGoogle, "other")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/pto-keeper/internal/authstate"
	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/and161185/pto-keeper/internal/repository/memory"
	"github.com/and161185/pto-keeper/internal/service"
	"github.com/and161185/pto-keeper/internal/session"
)

func newServices() (*service.AuthServiceImpl, *service.PtoServiceImpl) {
	hub := authstate.NewHub()
	auth := service.NewAuthService(memory.NewUserRepo(), session.NewMemoryStore(), hub, hub, []byte("k"), time.Minute, time.Hour)
	return auth, service.NewPtoService(memory.NewPtoRepo())
}

func TestClient_DataCallsRequireSignIn(t *testing.T) {
	t.Parallel()
	auth, pto := newServices()
	c := New("sid", auth, pto)
	ctx := context.Background()

	_, err := c.Records(ctx)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = c.CreateRecordIfAbsent(ctx, "u", 2024)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.ErrorIs(t, c.UpdateYears(ctx, "u", model.Years{}), errs.ErrUnauthorized)
	require.ErrorIs(t, c.UpdateName(ctx, "u", model.NullName()), errs.ErrUnauthorized)
}

func TestClient_SignedInFlow(t *testing.T) {
	t.Parallel()
	auth, pto := newServices()
	c := New("sid", auth, pto)
	ctx := context.Background()

	sess, err := auth.SignUp(ctx, "sid", "a@b.c", "pw", "A")
	require.NoError(t, err)
	uid := sess.User.UID

	created, err := c.CreateRecordIfAbsent(ctx, uid, 2024)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, c.UpdateName(ctx, uid, model.NameOf("Alice")))
	recs, err := c.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", *recs[uid].Name.Value)

	require.NoError(t, c.UpdateName(ctx, uid, model.NullName()))
	recs, err = c.Records(ctx)
	require.NoError(t, err)
	assert.True(t, recs[uid].Name.IsNull())

	require.NoError(t, c.SignOut(ctx))
	_, err = c.Records(ctx)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

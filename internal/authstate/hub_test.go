package authstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/pto-keeper/internal/model"
)

var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = (*RedisRelay)(nil)
)

func signedIn(uid string) model.AuthState {
	return model.AuthState{Session: &model.Session{ID: "s", User: model.User{UID: uid}}}
}

func TestHub_DeliversOnlyToMatchingSession(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	require.NoError(t, h.Publish(context.Background(), "a", signedIn("u1")))

	select {
	case st := <-a:
		assert.Equal(t, "u1", st.Session.User.UID)
	case <-time.After(time.Second):
		t.Fatal("no state on a")
	}
	select {
	case <-b:
		t.Fatal("b must not see a's state")
	default:
	}
}

func TestHub_SlowReaderSeesEveryStateInOrder(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch, cancel := h.Subscribe("s")
	defer cancel()
	ctx := context.Background()

	require.NoError(t, h.Publish(ctx, "s", signedIn("u1")))
	require.NoError(t, h.Publish(ctx, "s", model.AuthState{}))
	require.NoError(t, h.Publish(ctx, "s", signedIn("u2")))

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case st := <-ch:
			if st.SignedIn() {
				got = append(got, st.Session.User.UID)
			} else {
				got = append(got, "out")
			}
		case <-time.After(time.Second):
			t.Fatalf("state %d not delivered", i)
		}
	}
	assert.Equal(t, []string{"u1", "out", "u2"}, got)
}

func TestHub_CancelClosesAndUnregisters(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch, cancel := h.Subscribe("s")
	require.Equal(t, 1, h.Subscribers("s"))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("s"))
	require.NoError(t, h.Publish(context.Background(), "s", signedIn("u1")))
}

func TestRedisRelay_ForwardsToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub()
	relay := NewRedisRelay(rdb, hub, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, ready) }()
	<-ready

	ch, unsub := hub.Subscribe("sid-1")
	defer unsub()
	require.NoError(t, relay.Publish(ctx, "sid-1", signedIn("u9")))

	select {
	case st := <-ch:
		require.True(t, st.SignedIn())
		assert.Equal(t, "u9", st.Session.User.UID)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not forward")
	}

	cancel()
	require.NoError(t, <-done)
}

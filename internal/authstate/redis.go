package authstate

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/pto-keeper/internal/model"
)

// Channel is the Redis pub/sub channel carrying auth-state changes.
const Channel = "pto:authstate"

type envelope struct {
	SID   string          `json:"sid"`
	State model.AuthState `json:"state"`
}

// RedisRelay publishes auth-state changes through Redis so every server process
// sharing the session store notifies its own connections. Run must be active for
// published states to reach the local hub.
type RedisRelay struct {
	rdb redis.UniversalClient
	hub *Hub
	log *zap.Logger
}

// NewRedisRelay wires rdb to hub.
func NewRedisRelay(rdb redis.UniversalClient, hub *Hub, log *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub, log: log}
}

// Publish sends st for sid to every relay subscribed to Channel.
func (r *RedisRelay) Publish(ctx context.Context, sid string, st model.AuthState) error {
	b, err := json.Marshal(envelope{SID: sid, State: st})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, Channel, b).Err()
}

// Run forwards messages from Channel to the hub until ctx is done.
// ready, if non-nil, is closed once the subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	ps := r.rdb.Subscribe(ctx, Channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.Warn("authstate: bad relay message", zap.Error(err))
				continue
			}
			r.hub.deliver(env.SID, env.State)
		}
	}
}

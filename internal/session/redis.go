package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
)

const keyPrefix = "pto:session:"

// RedisStore keeps sessions as JSON strings with a Redis TTL so several server
// processes can share them.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps rdb.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore { return &RedisStore{rdb: rdb} }

// Get loads and decodes the session for id.
func (st *RedisStore) Get(ctx context.Context, id string) (*model.Session, error) {
	raw, err := st.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Put writes s with the given ttl; ttl <= 0 means no expiry.
func (st *RedisStore) Put(ctx context.Context, s *model.Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return st.rdb.Set(ctx, keyPrefix+s.ID, b, ttl).Err()
}

// Delete removes the session key.
func (st *RedisStore) Delete(ctx context.Context, id string) error {
	return st.rdb.Del(ctx, keyPrefix+id).Err()
}

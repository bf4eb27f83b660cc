package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key layout
const (
	connsKeyPrefix = "presence:conns:" // set of connection IDs per user
	onlineSetKey   = "presence:online" // set of online user IDs
)

// RedisStore is the shared registry for multi-instance deployments. Per-user
// connection sets carry a TTL so entries left behind by an instance crash
// age out instead of pinning users online forever.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisStore(client *goredis.Client, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Connect(ctx context.Context, userID uuid.UUID, connID string) error {
	key := connsKeyPrefix + userID.String()

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, connID)
	pipe.Expire(ctx, key, s.ttl)
	pipe.SAdd(ctx, onlineSetKey, userID.String())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Disconnect(ctx context.Context, userID uuid.UUID, connID string) (bool, error) {
	key := connsKeyPrefix + userID.String()

	if err := s.client.SRem(ctx, key, connID).Err(); err != nil {
		return false, err
	}
	remaining, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, onlineSetKey, userID.String())
	_, err = pipe.Exec(ctx)
	return true, err
}

func (s *RedisStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.client.SCard(ctx, connsKeyPrefix+userID.String()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) OnlineCount(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, onlineSetKey).Result()
}

// Touch refreshes the TTL on a user's connection set. The gateway calls it
// from the socket ping loop.
func (s *RedisStore) Touch(ctx context.Context, userID uuid.UUID) error {
	return s.client.Expire(ctx, connsKeyPrefix+userID.String(), s.ttl).Err()
}

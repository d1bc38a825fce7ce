package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers consumed Kafka offsets for a while so redelivered messages
// (rebalance, restart before commit) are dropped early. It is advisory only:
// the database compare-and-swap is what actually makes processing idempotent.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(group, topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%s:%d:%d", group, topic, partition, offset)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget releases a marker claimed by Seen. Callers that fail after claiming
// must forget the key, or the redelivered message would be dropped as a
// duplicate without ever having been processed.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

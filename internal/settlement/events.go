package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventStore records settled webhook event ids in redis so a
// redelivered event short-circuits before touching the provider.
type RedisEventStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventStore constructs the store. Keys expire after ttl; the
// provider stops redelivering long before that.
func NewRedisEventStore(client *redis.Client, ttl time.Duration) *RedisEventStore {
	return &RedisEventStore{client: client, ttl: ttl}
}

func (s *RedisEventStore) key(eventID string) string {
	return fmt.Sprintf("settlement:event:%s", eventID)
}

// Processed reports whether the event already settled cleanly.
func (s *RedisEventStore) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed records the event after a successful run. A run that
// fails or crashes never marks, so redelivery is not shut out.
func (s *RedisEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

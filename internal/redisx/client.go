package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// AlreadySeen reports whether a service finished processing this event
// id. The mark is written by MarkSeen only after the handler succeeds,
// so a retried delivery is never skipped; concurrent duplicates are
// absorbed by the stores' own idempotency.
func AlreadySeen(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	return Exists(ctx, rdb, fmt.Sprintf(KeyDedup, service, eventID))
}

// MarkSeen records the event id after successful processing. Best
// effort: losing the mark costs one redundant no-op replay.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, eventID string) {
	rdb.Set(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup)
}

// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hugoapp/hugo-backend/internal/config"
)

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// EventDeduper remembers webhook event ids already applied so replayed
// deliveries short-circuit into no-ops. It is an optimization in front of the
// ledger's unique payment_reference anchor, not the source of truth: losing
// the redis state only costs a redundant (still idempotent) apply.
type EventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventDeduper(client *redis.Client, ttl time.Duration) *EventDeduper {
	return &EventDeduper{client: client, ttl: ttl}
}

// FirstDelivery marks the event id as seen and reports whether this delivery
// was the first one. With no redis configured every delivery counts as first.
func (d *EventDeduper) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.client == nil {
		return true, nil
	}

	ok, err := d.client.SetNX(ctx, "webhook:event:"+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event delivery: %w", err)
	}
	return ok, nil
}

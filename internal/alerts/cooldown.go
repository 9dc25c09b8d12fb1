package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the minimal cache surface Cooldown needs, satisfied by
// *redis.Client. Narrowing to an interface keeps the cooldown gate testable
// without a live Redis connection.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Cooldown gates alert creation with a per-rule lock in the shared cache
//: SET cooldown:<ruleId> <now> EX cooldownSeconds NX.
type Cooldown struct {
	client RedisClient
}

func NewCooldown(client RedisClient) *Cooldown {
	return &Cooldown{client: client}
}

// Acquire attempts to take the cooldown lock for ruleID. On cache error the
// policy fails open (allow=true) to avoid silently dropping an alert.
func (c *Cooldown) Acquire(ctx context.Context, ruleID string, cooldown time.Duration, now time.Time) (allowed bool, reason string) {
	key := fmt.Sprintf("cooldown:%s", ruleID)

	ok, err := c.client.SetNX(ctx, key, now.Unix(), cooldown).Result()
	if err != nil {
		return true, ""
	}
	if ok {
		return true, ""
	}

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return false, "Cooldown active"
	}
	return false, fmt.Sprintf("Cooldown active (%ds remaining)", int(ttl.Seconds()))
}

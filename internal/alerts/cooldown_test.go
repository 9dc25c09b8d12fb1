package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisClient struct {
	locked  map[string]time.Duration
	setErr  error
	ttlErr  error
}

func (f *fakeRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	if f.locked == nil {
		f.locked = make(map[string]time.Duration)
	}
	if _, exists := f.locked[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.locked[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedisClient) TTL(ctx context.Context, key string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second)
	if f.ttlErr != nil {
		cmd.SetErr(f.ttlErr)
		return cmd
	}
	ttl, ok := f.locked[key]
	if !ok {
		cmd.SetVal(-2 * time.Second)
		return cmd
	}
	cmd.SetVal(ttl)
	return cmd
}

func TestCooldownAcquireSucceedsWhenUnlocked(t *testing.T) {
	client := &fakeRedisClient{}
	cd := NewCooldown(client)
	allowed, reason := cd.Acquire(context.Background(), "rule-1", 10*time.Minute, time.Now())
	if !allowed || reason != "" {
		t.Fatalf("expected lock acquisition to succeed, got allowed=%v reason=%q", allowed, reason)
	}
}

func TestCooldownAcquireFailsWhileLocked(t *testing.T) {
	client := &fakeRedisClient{}
	cd := NewCooldown(client)
	now := time.Now()

	allowed, _ := cd.Acquire(context.Background(), "rule-1", 10*time.Minute, now)
	if !allowed {
		t.Fatalf("expected first acquire to succeed")
	}

	allowed2, reason2 := cd.Acquire(context.Background(), "rule-1", 10*time.Minute, now)
	if allowed2 {
		t.Fatalf("expected second acquire on the same rule to be denied")
	}
	if reason2 == "" {
		t.Fatalf("expected a cooldown reason")
	}
}

func TestCooldownFailsOpenOnCacheError(t *testing.T) {
	client := &fakeRedisClient{setErr: context.DeadlineExceeded}
	cd := NewCooldown(client)
	allowed, _ := cd.Acquire(context.Background(), "rule-1", 10*time.Minute, time.Now())
	if !allowed {
		t.Fatalf("expected fail-open behavior on cache error")
	}
}

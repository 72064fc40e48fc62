package admission

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter over Redis sorted sets, one per identity
// per window, scored by request time. Multiple honeypot instances sharing a
// Redis see one combined quota per identity.
//
// Redis outages fail open: an unreachable limiter must not take the decoy
// down with it.
type RedisLimiter struct {
	client       *redis.Client
	perMinuteCap int
	perDayCap    int
	now          func() time.Time
}

// RedisOption customizes a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisClock injects a time source for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) { l.now = now }
}

// NewRedisLimiter creates a limiter backed by the given client.
func NewRedisLimiter(client *redis.Client, perMinuteCap, perDayCap int, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client:       client,
		perMinuteCap: perMinuteCap,
		perDayCap:    perDayCap,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func minuteKey(identity string) string { return "decoy:rl:minute:" + identity }
func dayKey(identity string) string    { return "decoy:rl:day:" + identity }

// windowCount purges expired members and returns the count and the oldest
// surviving score.
func (l *RedisLimiter) windowCount(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	if err := l.client.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
		return 0, time.Time{}, err
	}

	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	var oldest time.Time
	if count > 0 {
		entries, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err != nil {
			return 0, time.Time{}, err
		}
		if len(entries) > 0 {
			oldest = time.UnixMilli(int64(entries[0].Score))
		}
	}
	return count, oldest, nil
}

// Check tests both windows. Any Redis failure admits the request.
func (l *RedisLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	now := l.now()

	minCount, minOldest, err := l.windowCount(ctx, minuteKey(identity), minuteWindow, now)
	if err != nil {
		log.Printf("[WARN] Redis rate limit check failed, admitting request: %v", err)
		return Decision{Allowed: true}, nil
	}
	if minCount >= int64(l.perMinuteCap) {
		wait := minuteWindow - now.Sub(minOldest)
		return Decision{Reason: minuteDenial(l.perMinuteCap, wait)}, nil
	}

	dayCount, dayOldest, err := l.windowCount(ctx, dayKey(identity), dayWindow, now)
	if err != nil {
		log.Printf("[WARN] Redis rate limit check failed, admitting request: %v", err)
		return Decision{Allowed: true}, nil
	}
	if dayCount >= int64(l.perDayCap) {
		wait := dayWindow - now.Sub(dayOldest)
		return Decision{Reason: dayDenial(l.perDayCap, wait)}, nil
	}

	return Decision{Allowed: true}, nil
}

// Record appends the request to both windows. Members are random so two
// requests in the same millisecond both count.
func (l *RedisLimiter) Record(ctx context.Context, identity string) error {
	now := l.now()
	score := float64(now.UnixMilli())

	pipe := l.client.TxPipeline()
	for _, w := range []struct {
		key string
		ttl time.Duration
	}{
		{minuteKey(identity), minuteWindow},
		{dayKey(identity), dayWindow},
	} {
		pipe.ZAdd(ctx, w.key, redis.Z{Score: score, Member: uuid.NewString()})
		// Keys self-clean after the window plus slack.
		pipe.Expire(ctx, w.key, w.ttl+time.Minute)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[WARN] Redis rate limit record failed: %v", err)
		return fmt.Errorf("record rate limit: %w", err)
	}
	return nil
}

// Remaining reports quota left in each window. Redis failures read as full
// quota, consistent with Check failing open.
func (l *RedisLimiter) Remaining(ctx context.Context, identity string) (int, int, error) {
	now := l.now()

	minCount, _, err := l.windowCount(ctx, minuteKey(identity), minuteWindow, now)
	if err != nil {
		return l.perMinuteCap, l.perDayCap, err
	}
	dayCount, _, err := l.windowCount(ctx, dayKey(identity), dayWindow, now)
	if err != nil {
		return l.perMinuteCap, l.perDayCap, err
	}
	return remaining(l.perMinuteCap, int(minCount)), remaining(l.perDayCap, int(dayCount)), nil
}

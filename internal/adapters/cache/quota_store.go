// Package cache holds the Redis-backed quota store. Quotas reset daily; keys
// carry the UTC date so rollover needs no scheduled cleanup, just expiry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisQuotaStore enforces per-channel daily send budgets. A channel with no
// configured limit is unlimited.
type RedisQuotaStore struct {
	client *redis.Client
	limits map[domain.Channel]int
	now    func() time.Time
}

func NewRedisQuotaStore(client *redis.Client, limits map[domain.Channel]int) *RedisQuotaStore {
	return &RedisQuotaStore{client: client, limits: limits, now: time.Now}
}

func (s *RedisQuotaStore) Available(ctx context.Context, channel domain.Channel) (bool, error) {
	limit, limited := s.limits[channel]
	if !limited || limit <= 0 {
		return true, nil
	}
	used, err := s.client.Get(ctx, s.key(channel)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("read quota for %s: %w", channel, err)
	}
	return used < limit, nil
}

func (s *RedisQuotaStore) Consume(ctx context.Context, channel domain.Channel) error {
	if _, limited := s.limits[channel]; !limited {
		return nil
	}
	key := s.key(channel)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		// Two days covers every timezone's view of "today" before expiry.
		p.Expire(ctx, key, 48*time.Hour)
		return nil
	})
	if err != nil {
		return fmt.Errorf("consume quota for %s: %w", channel, err)
	}
	return nil
}

func (s *RedisQuotaStore) key(channel domain.Channel) string {
	return QuotaKey(channel, s.now())
}

// QuotaKey derives the daily counter key for a channel.
func QuotaKey(channel domain.Channel, at time.Time) string {
	return fmt.Sprintf("outreach:quota:%s:%s", channel, at.UTC().Format("2006-01-02"))
}

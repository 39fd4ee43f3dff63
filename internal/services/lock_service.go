// internal/services/lock_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shareview/insights-backend/internal/config"
	"github.com/shareview/insights-backend/internal/utils"
)

var ErrLockHeld = errors.New("lock is held by another request")

// GenerationLocker serialises generation requests that share a key.
type GenerationLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func GenerationLockKey(retailerID, pageType, tabName string, period utils.Period) string {
	return strings.Join([]string{
		"insights-generation",
		retailerID,
		pageType,
		tabName,
		period.Start.Format(utils.DateLayout),
		period.End.Format(utils.DateLayout),
	}, ":")
}

type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// request context may already be done here
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logrus.WithError(err).WithField("key", key).Warn("Failed to release generation lock")
		}
	}, nil
}

// NoopLocker accepts every request. Concurrent identical generations may
// then insert duplicate insight rows.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// NewGenerationLocker returns a Redis-backed locker when Redis is configured,
// otherwise a NoopLocker. The returned closer releases the Redis client.
func NewGenerationLocker(cfg config.RedisConfig, ttl time.Duration) (GenerationLocker, func()) {
	addr := cfg.Addr()
	if addr == "" {
		logrus.Warn("Redis not configured; concurrent generation requests are not serialised")
		return NoopLocker{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisLocker(rdb, ttl), func() {
		if err := rdb.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
}

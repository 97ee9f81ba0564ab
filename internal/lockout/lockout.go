// Package lockout counts failed logins per username in Redis and reports when a
// username is locked.
package lockout

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const keyPrefix = "core-auth:lockout:"

// Config is the lockout policy. Failures are counted for Window after the first
// one; reaching Threshold locks the username until the window closes.
type Config struct {
	Threshold int
	Window    time.Duration
}

// Limiter tracks failed logins. Usernames that do not exist are counted too, so
// lockout responses do not reveal which accounts exist.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewLimiter returns a Limiter backed by client.
func NewLimiter(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	return &Limiter{redis: client, config: cfg}
}

func (l *Limiter) key(username string) string {
	return keyPrefix + username
}

// RecordFailure counts one failed login and reports whether the threshold is now reached.
func (l *Limiter) RecordFailure(ctx context.Context, username string) (bool, error) {
	key := l.key(username)
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the window anchored at the first failure.
	pipe.ExpireNX(ctx, key, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, oops.Code("LOCKOUT_UNAVAILABLE").With("op", "record").Wrap(err)
	}
	return incr.Val() >= int64(l.config.Threshold), nil
}

// Locked reports whether username has reached the failure threshold.
func (l *Limiter) Locked(ctx context.Context, username string) (bool, error) {
	n, err := l.Failures(ctx, username)
	if err != nil {
		return false, err
	}
	return n >= l.config.Threshold, nil
}

// Failures returns the current failure count for username.
func (l *Limiter) Failures(ctx context.Context, username string) (int, error) {
	n, err := l.redis.Get(ctx, l.key(username)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, oops.Code("LOCKOUT_UNAVAILABLE").With("op", "get").Wrap(err)
	}
	return n, nil
}

// Reset clears the failure count, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, l.key(username)).Err(); err != nil {
		return oops.Code("LOCKOUT_UNAVAILABLE").With("op", "reset").Wrap(err)
	}
	return nil
}

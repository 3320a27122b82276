package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is a fixed-window budget: at most MaxAttempts hits per Window.
// A policy with MaxAttempts <= 0 is disabled.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.MaxAttempts > 0 && p.Window > 0
}

// Config holds the policies for each throttled operation.
type Config struct {
	Login          Policy
	LoginIP        Policy
	OneTimeRequest Policy
}

// Scope names a throttled operation and doubles as its key prefix.
type Scope string

const (
	ScopeLogin          Scope = "rl:login"
	ScopeLoginIP        Scope = "rl:login-ip"
	ScopeOneTimeRequest Scope = "rl:onetime"
)

// Limiter enforces fixed-window limits with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin fails with ErrRateLimited when the identifier or the client IP
// has exhausted its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.check(ctx, key(ScopeLogin, identifier), l.config.Login); err != nil {
		return err
	}
	if ip != "" {
		if err := l.check(ctx, key(ScopeLoginIP, ip), l.config.LoginIP); err != nil {
			return err
		}
	}
	return nil
}

// FailLogin records a failed login for identifier and ip.
func (l *Limiter) FailLogin(ctx context.Context, identifier, ip string) error {
	if err := l.hit(ctx, key(ScopeLogin, identifier), l.config.Login); err != nil {
		return err
	}
	if ip != "" {
		return l.hit(ctx, key(ScopeLoginIP, ip), l.config.LoginIP)
	}
	return nil
}

// ResetLogin clears the identifier's failed-login counter after a success.
// The IP counter is left alone so one good account cannot unlock an IP.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if !l.config.Login.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, key(ScopeLogin, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowOneTimeRequest counts a reset or verification request for identifier
// and fails with ErrRateLimited once the budget is spent.
func (l *Limiter) AllowOneTimeRequest(ctx context.Context, identifier string) error {
	return l.hit(ctx, key(ScopeOneTimeRequest, identifier), l.config.OneTimeRequest)
}

// Attempts returns the current counter for scope and identifier.
func (l *Limiter) Attempts(ctx context.Context, scope Scope, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, key(scope, identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) check(ctx context.Context, k string, p Policy) error {
	if !p.Enabled() {
		return nil
	}
	count, err := l.redis.Get(ctx, k).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(p.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) hit(ctx context.Context, k string, p Policy) error {
	if !p.Enabled() {
		return nil
	}
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, p.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(p.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func key(scope Scope, identifier string) string {
	return string(scope) + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

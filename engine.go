package goAccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/kv"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/permission"
)

// revokedMarker is written over both ledger records on revoke. It can never
// equal a jti, which are UUIDs.
const revokedMarker = "revoked"

// Engine is the account auth core: session tokens, one-time tokens, and
// role-based permission checks.
//
// An Engine is built once with Builder and is safe for concurrent use. It
// holds no in-process locks on the session path; every request talks to the
// ledger store directly.
type Engine struct {
	config  Config
	flows   internalflows.Service
	codec   *jwt.Codec
	store   kv.Store
	users   map[Platform]UserStore
	roles   *permission.Resolver
	hasher  *password.Hasher
	limiter *rate.Limiter
	audit   AuditSink
	metrics *Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized() && e.roles != nil && e.hasher != nil
}

// IssuePair signs a fresh access/refresh pair for id and pins both jtis in
// the ledger. Any pair issued earlier for the same user stops verifying.
func (e *Engine) IssuePair(ctx context.Context, id Identity) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	res := e.flows.IssuePair(ctx, id)
	if res.Failure != internalflows.SessionFailureNone {
		return TokenPair{}, e.sessionError(res.Failure, res.Err)
	}

	e.metricInc(MetricSessionCreated)
	return toTokenPair(res.Pair), nil
}

// Verify checks token as a token of the given kind and returns its claims.
//
// Checks run in order: decoding and signature, expiry, kind, the ledger
// record, then the enabled and verified flags signed into the token. A
// ledger outage fails closed with ErrStoreUnavailable.
func (e *Engine) Verify(ctx context.Context, token string, kind TokenKind) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res := e.flows.Verify(ctx, token, kind)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	if res.Failure != internalflows.SessionFailureNone {
		switch res.Failure {
		case internalflows.SessionFailureRevoked:
			e.metricInc(MetricVerifyRevoked)
		case internalflows.SessionFailureStoreUnavailable:
			e.metricInc(MetricStoreUnavailable)
		}
		e.metricInc(MetricVerifyFailure)
		return nil, e.sessionError(res.Failure, res.Err)
	}

	e.metricInc(MetricVerifySuccess)
	return res.Claims, nil
}

// Revoke invalidates every outstanding token of userID by overwriting both
// ledger records with a short-lived marker.
//
// Both writes are always attempted. If either fails the returned error wraps
// ErrRevokeIncomplete and the caller should retry.
func (e *Engine) Revoke(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	if err := e.flows.Revoke(ctx, userID); err != nil {
		e.metricInc(MetricRevokeIncomplete)
		e.logger.WarnContext(ctx, "session revoke incomplete", slog.String("user_id", userID), slog.Any("error", err))
		e.emitAudit(ctx, auditRecord{eventType: auditEventSessionRevoked, userID: userID, err: ErrRevokeIncomplete})
		return fmt.Errorf("%w: %w", ErrRevokeIncomplete, err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditRecord{eventType: auditEventSessionRevoked, userID: userID})
	return nil
}

// Refresh rotates the pair identified by current, which must be verified
// refresh-token claims. The new pair carries the same identity snapshot.
//
// Of several concurrent refreshes with the same refresh token exactly one
// succeeds; the rest fail with ErrTokenRevoked.
func (e *Engine) Refresh(ctx context.Context, current *Claims) (TokenPair, error) {
	if current == nil {
		return TokenPair{}, ErrTokenInvalid
	}
	return e.rotate(ctx, current, identityFromClaims(current))
}

func (e *Engine) rotate(ctx context.Context, current *Claims, id Identity) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	res := e.flows.Rotate(ctx, current, id)
	if res.Failure != internalflows.SessionFailureNone {
		if res.Failure == internalflows.SessionFailureRevoked {
			e.metricInc(MetricRefreshRaceLost)
		}
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, e.sessionError(res.Failure, res.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	return toTokenPair(res.Pair), nil
}

func (e *Engine) sessionError(kind internalflows.SessionFailureKind, err error) error {
	switch kind {
	case internalflows.SessionFailureMalformed:
		return ErrTokenMalformed
	case internalflows.SessionFailureSignature:
		return ErrTokenSignature
	case internalflows.SessionFailureExpired:
		return ErrTokenExpired
	case internalflows.SessionFailureWrongKind:
		return fmt.Errorf("%w: wrong token kind", ErrTokenInvalid)
	case internalflows.SessionFailureClaims:
		return fmt.Errorf("%w: invalid claims", ErrTokenInvalid)
	case internalflows.SessionFailureRevoked:
		return ErrTokenRevoked
	case internalflows.SessionFailureDisabled:
		return ErrAccountDisabled
	case internalflows.SessionFailureUnverified:
		return ErrAccountUnverified
	case internalflows.SessionFailureStoreUnavailable:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		if err == nil {
			err = errors.New("token issue failed")
		}
		return fmt.Errorf("issue tokens: %w", err)
	}
}

func toTokenPair(p internalflows.Pair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func identityFromClaims(c *Claims) Identity {
	return Identity{
		UserID:   c.UserID(),
		UserType: c.UserType,
		RoleID:   c.UserRoleID,
		RoleName: c.UserRole,
		Enabled:  c.Enabled,
		Verified: c.Verified,
	}
}

func sessionKey(kind jwt.Kind, userID string) string {
	return string(kind) + "-" + userID
}

func oneTimeKey(purpose, token string) string {
	return purpose + "-" + token
}

package goAccount

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/kv"
)

func TestIssuePairVerifiesBothKinds(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if want := env.clock.Now().Add(15 * time.Minute); !pair.AccessExpiresAt.Equal(want) {
		t.Fatalf("access expiry = %v, want %v", pair.AccessExpiresAt, want)
	}

	access, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if access.UserID() != "u1" || access.UserRole != "admin" || access.TokenType != AccessToken {
		t.Fatalf("unexpected access claims: %+v", access)
	}

	refresh, err := env.engine.Verify(ctx, pair.RefreshToken, RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if refresh.JTI() == access.JTI() {
		t.Fatal("access and refresh jti must differ")
	}

	stored, err := env.ledger.Get(ctx, sessionKey(AccessToken, "u1"))
	if err != nil || stored != access.JTI() {
		t.Fatalf("ledger at record = %q, %v; want %q", stored, err, access.JTI())
	}
}

func TestVerifyLatestIssueWins(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	first, err := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := env.engine.Verify(ctx, first.AccessToken, AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked for superseded token, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, first.RefreshToken, RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked for superseded refresh, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, second.AccessToken, AccessToken); err != nil {
		t.Fatalf("latest token should verify: %v", err)
	}
}

func TestVerifySessionsAreIndependentPerUser(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	a, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if _, err := env.engine.IssuePair(ctx, activeIdentity("u2")); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := env.engine.Verify(ctx, a.AccessToken, AccessToken); err != nil {
		t.Fatalf("other user's issue must not revoke: %v", err)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	pair, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if _, err := env.engine.Verify(ctx, pair.AccessToken, RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, pair.RefreshToken, AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	pair, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
	env.clock.Advance(16 * time.Minute)

	_, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ErrTokenExpired should wrap ErrTokenInvalid")
	}
	if _, err := env.engine.Verify(ctx, pair.RefreshToken, RefreshToken); err != nil {
		t.Fatalf("refresh token should still verify: %v", err)
	}
}

func TestVerifyMalformedAndForeignSignature(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	if _, err := env.engine.Verify(ctx, "not-a-token", AccessToken); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, "", AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}

	foreign := newTestEnv(t, envOptions{mutate: func(c *Config) {
		c.JWT.AccessKey = []byte("another-access-secret-0123456789")
		c.JWT.RefreshKey = []byte("another-refresh-secret-012345678")
	}})
	pair, err := foreign.engine.IssuePair(ctx, activeIdentity("u1"))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestVerifySnapshotFlags(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	disabled := activeIdentity("u-disabled")
	disabled.Enabled = false
	pair, _ := env.engine.IssuePair(ctx, disabled)
	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	unverified := activeIdentity("u-unverified")
	unverified.Verified = false
	pair, _ = env.engine.IssuePair(ctx, unverified)
	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestVerifyRevokedBeforeDisabled(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	id := activeIdentity("u1")
	id.Enabled = false
	pair, _ := env.engine.IssuePair(ctx, id)
	if err := env.engine.Revoke(ctx, "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestVerifyFailsClosedOnStoreOutage(t *testing.T) {
	env := newTestEnv(t, envOptions{redisLedger: true})
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	env.redis.SetError("LOADING server is loading")
	_, err = env.engine.Verify(ctx, pair.AccessToken, AccessToken)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricStoreUnavailable]; got != 1 {
		t.Fatalf("expected store unavailable metric 1, got %d", got)
	}

	env.redis.SetError("")
	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); err != nil {
		t.Fatalf("verify after recovery: %v", err)
	}
}

func TestRevokeInvalidatesBothTokens(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	pair, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
	if err := env.engine.Revoke(ctx, "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, pair.RefreshToken, RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	for _, kind := range []TokenKind{AccessToken, RefreshToken} {
		v, err := env.ledger.Get(ctx, sessionKey(kind, "u1"))
		if err != nil || v != revokedMarker {
			t.Fatalf("%s record = %q, %v; want revoked marker", kind, v, err)
		}
	}

	// The marker is short-lived; an absent record still reads as revoked.
	env.clock.Advance(2 * time.Second)
	if _, err := env.engine.Verify(ctx, pair.AccessToken, AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after marker expiry, got %v", err)
	}

	if err := env.engine.Revoke(ctx, "u1"); err != nil {
		t.Fatalf("revoke is idempotent: %v", err)
	}
}

func TestRevokeRejectsEmptyUser(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if err := env.engine.Revoke(context.Background(), ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

type failingSetStore struct {
	kv.Store
	failKey string
}

func (s *failingSetStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == s.failKey && value == revokedMarker {
		return kv.ErrUnavailable
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func TestRevokeAttemptsBothWritesOnFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{ledger: func(s kv.Store) kv.Store {
		return &failingSetStore{Store: s, failKey: sessionKey(AccessToken, "u1")}
	}})
	ctx := context.Background()

	pair, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))

	err := env.engine.Revoke(ctx, "u1")
	if !errors.Is(err, ErrRevokeIncomplete) {
		t.Fatalf("expected ErrRevokeIncomplete, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, pair.RefreshToken, RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh record should be revoked despite access failure, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRevokeIncomplete]; got != 1 {
		t.Fatalf("expected revoke incomplete metric 1, got %d", got)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	old, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
	claims, err := env.engine.Verify(ctx, old.RefreshToken, RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}

	next, err := env.engine.Refresh(ctx, claims)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := env.engine.Verify(ctx, old.RefreshToken, RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old refresh token should be revoked, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, old.AccessToken, AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old access token should be revoked, got %v", err)
	}
	got, err := env.engine.Verify(ctx, next.AccessToken, AccessToken)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if got.UserRole != claims.UserRole || got.UserType != claims.UserType {
		t.Fatalf("refresh must carry the identity snapshot: %+v", got)
	}

	if _, err := env.engine.Refresh(ctx, claims); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replayed refresh should fail with ErrTokenRevoked, got %v", err)
	}
}

func TestRefreshAfterRevokeFails(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	pair, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
	claims, _ := env.engine.Verify(ctx, pair.RefreshToken, RefreshToken)
	if err := env.engine.Revoke(ctx, "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, claims); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, nil); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for nil claims, got %v", err)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	for _, tc := range []struct {
		name  string
		redis bool
	}{
		{name: "memory"},
		{name: "redis", redis: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{redisLedger: tc.redis})
			ctx := context.Background()

			pair, _ := env.engine.IssuePair(ctx, activeIdentity("u1"))
			claims, err := env.engine.Verify(ctx, pair.RefreshToken, RefreshToken)
			if err != nil {
				t.Fatalf("verify refresh: %v", err)
			}

			const workers = 16
			var (
				wg      sync.WaitGroup
				winners atomic.Int32
				losers  atomic.Int32
				winner  TokenPair
				mu      sync.Mutex
			)
			start := make(chan struct{})
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					<-start
					p, err := env.engine.Refresh(ctx, claims)
					switch {
					case err == nil:
						winners.Add(1)
						mu.Lock()
						winner = p
						mu.Unlock()
					case errors.Is(err, ErrTokenRevoked):
						losers.Add(1)
					default:
						t.Errorf("unexpected refresh error: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if winners.Load() != 1 || losers.Load() != workers-1 {
				t.Fatalf("winners=%d losers=%d", winners.Load(), losers.Load())
			}
			if _, err := env.engine.Verify(ctx, winner.AccessToken, AccessToken); err != nil {
				t.Fatalf("winner access token: %v", err)
			}
			if _, err := env.engine.Verify(ctx, winner.RefreshToken, RefreshToken); err != nil {
				t.Fatalf("winner refresh token: %v", err)
			}
			if got := env.engine.MetricsSnapshot().Counters[MetricRefreshRaceLost]; got != workers-1 {
				t.Fatalf("race lost metric = %d, want %d", got, workers-1)
			}
		})
	}
}

func TestEngineNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()
	if _, err := e.IssuePair(ctx, activeIdentity("u1")); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Verify(ctx, "x", AccessToken); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Revoke(ctx, "u1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/kv"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyStore wraps a store and fails selected operations.
type flakyStore struct {
	kv.Store
	failGet   atomic.Bool
	failSetOn func(key string) bool
	failCAS   atomic.Bool
}

var errBoom = errors.New("boom")

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if f.failGet.Load() {
		return "", errorsJoinUnavailable()
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.failSetOn != nil && f.failSetOn(key) {
		return errorsJoinUnavailable()
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *flakyStore) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	if f.failCAS.Load() {
		return false, errorsJoinUnavailable()
	}
	return f.Store.CompareAndSet(ctx, key, expected, value, ttl)
}

func errorsJoinUnavailable() error {
	return errors.Join(kv.ErrUnavailable, errBoom)
}

type sessionFixture struct {
	clock *testClock
	store *flakyStore
	deps  SessionDeps
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	clock := newTestClock()
	codec, err := jwt.NewCodec(
		jwt.Config{TTL: 15 * time.Minute, SigningMethod: jwt.MethodHS256, PrivateKey: []byte("access-secret-access-secret"), Now: clock.Now},
		jwt.Config{TTL: 7 * 24 * time.Hour, SigningMethod: jwt.MethodHS256, PrivateKey: []byte("refresh-secret-refresh-secret"), Now: clock.Now},
	)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	store := &flakyStore{Store: kv.NewMemoryStore(clock.Now)}

	var seq atomic.Int64
	return &sessionFixture{
		clock: clock,
		store: store,
		deps: SessionDeps{
			Codec: codec,
			Store: store,
			NewJTI: func() (string, error) {
				return "jti-" + strconv.FormatInt(seq.Add(1), 10), nil
			},
			Key: func(kind jwt.Kind, userID string) string {
				return string(kind) + "-" + userID
			},
			RevokedValue: "revoked",
			RevokeTTL:    time.Second,
		},
	}
}

func activeIdentity(userID string) jwt.Identity {
	return jwt.Identity{
		UserID:   userID,
		UserType: "admin",
		RoleID:   "role-1",
		RoleName: "admin",
		Enabled:  true,
		Verified: true,
	}
}

// tamperSignature flips one character in the middle of the signature segment.
func tamperSignature(token string) string {
	i := strings.LastIndex(token, ".") + 5
	b := []byte(token)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

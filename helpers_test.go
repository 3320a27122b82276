package goAccount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/kv"
	"github.com/MrEthical07/goAccount/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type testEnv struct {
	engine    *Engine
	ledger    kv.Store
	redis     *miniredis.Miniredis
	admins    *MemoryUserStore
	consumers *MemoryUserStore
	roles     *permission.MemoryStore
	audit     *ChannelSink
	clock     *testClock
}

type envOptions struct {
	mutate      func(*Config)
	redisLedger bool
	ledger      func(kv.Store) kv.Store
	users       func(Platform, *MemoryUserStore) UserStore
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessKey = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshKey = []byte("refresh-secret-0123456789abcdef")
	cfg.JWT.Issuer = "goaccount-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

// newTestEnv builds an engine over in-memory user and role stores. Login
// throttling always runs against miniredis; the session ledger is in memory
// unless redisLedger is set.
func newTestEnv(t testing.TB, opts envOptions) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}

	clock := newTestClock()
	env := &testEnv{
		redis:     mr,
		admins:    NewMemoryUserStore(),
		consumers: NewMemoryUserStore(),
		roles:     permission.NewDefaultMemoryStore(),
		audit:     NewChannelSink(256),
		clock:     clock,
	}

	var admins, consumers UserStore = env.admins, env.consumers
	if opts.users != nil {
		admins = opts.users(PlatformAdmin, env.admins)
		consumers = opts.users(PlatformConsumer, env.consumers)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(PlatformAdmin, admins).
		WithUserStore(PlatformConsumer, consumers).
		WithRoleStore(env.roles).
		WithAuditSink(env.audit).
		WithClock(clock.Now)

	if opts.redisLedger {
		env.ledger = kv.NewRedisStore(rdb, cfg.Store.Prefix)
	} else {
		env.ledger = kv.NewMemoryStore(clock.Now)
	}
	if opts.ledger != nil {
		env.ledger = opts.ledger(env.ledger)
	}
	b.WithStore(env.ledger)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	env.engine = engine
	return env
}

func (env *testEnv) store(p Platform) *MemoryUserStore {
	if p == PlatformConsumer {
		return env.consumers
	}
	return env.admins
}

func (env *testEnv) addUser(t *testing.T, p Platform, u UserRecord) UserRecord {
	t.Helper()
	if u.PasswordHash == "" {
		hash, err := env.engine.hasher.Hash(testPassword)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		u.PasswordHash = hash
	}
	if err := env.store(p).Save(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func (env *testEnv) user(t *testing.T, p Platform, id string) UserRecord {
	t.Helper()
	u, err := env.store(p).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find user %s: %v", id, err)
	}
	return u
}

// seedUsers adds one active account per default role.
func (env *testEnv) seedUsers(t *testing.T) {
	t.Helper()
	env.addUser(t, PlatformAdmin, UserRecord{ID: "u-super", Email: "root@example.com", UserType: UserTypeAdmin, RoleID: permission.RoleSuperAdmin, Enabled: true, Verified: true})
	env.addUser(t, PlatformAdmin, UserRecord{ID: "u-admin", Email: "admin@example.com", UserType: UserTypeAdmin, RoleID: permission.RoleAdmin, Enabled: true, Verified: true})
	env.addUser(t, PlatformAdmin, UserRecord{ID: "u-partner", Email: "partner@example.com", UserType: UserTypePartner, RoleID: permission.RolePartner, Enabled: true, Verified: true})
	env.addUser(t, PlatformConsumer, UserRecord{ID: "u-youth", Email: "youth@example.com", UserType: UserTypeYouth, RoleID: permission.RoleYouth, Enabled: true, Verified: true, LoginType: LoginTypeEmail})
}

func (env *testEnv) claimsFor(t *testing.T, p Platform, email string) *Claims {
	t.Helper()
	pair, err := env.engine.Login(context.Background(), p, email, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	claims, err := env.engine.Verify(context.Background(), pair.AccessToken, AccessToken)
	if err != nil {
		t.Fatalf("verify %s: %v", email, err)
	}
	return claims
}

func (env *testEnv) drainAudit() []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

// interleavingStore runs afterRead once a lookup has returned, standing in
// for a writer that lands between a flow's read and its write.
type interleavingStore struct {
	*MemoryUserStore
	mu        sync.Mutex
	afterRead func(ctx context.Context, u UserRecord)
}

func (s *interleavingStore) hook() func(context.Context, UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := s.afterRead
	s.afterRead = nil
	return fn
}

func (s *interleavingStore) FindByID(ctx context.Context, id string) (UserRecord, error) {
	u, err := s.MemoryUserStore.FindByID(ctx, id)
	if err == nil {
		if fn := s.hook(); fn != nil {
			fn(ctx, u)
		}
	}
	return u, err
}

func (s *interleavingStore) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	u, err := s.MemoryUserStore.FindByEmail(ctx, email)
	if err == nil {
		if fn := s.hook(); fn != nil {
			fn(ctx, u)
		}
	}
	return u, err
}

// interleave sets the one-shot afterRead hook.
func (s *interleavingStore) interleave(fn func(ctx context.Context, u UserRecord)) {
	s.mu.Lock()
	s.afterRead = fn
	s.mu.Unlock()
}

// newInterleavingEnv wraps both user stores in an interleavingStore.
func newInterleavingEnv(t *testing.T) (*testEnv, map[Platform]*interleavingStore) {
	t.Helper()
	wrapped := make(map[Platform]*interleavingStore, 2)
	env := newTestEnv(t, envOptions{users: func(p Platform, s *MemoryUserStore) UserStore {
		w := &interleavingStore{MemoryUserStore: s}
		wrapped[p] = w
		return w
	}})
	return env, wrapped
}

func activeIdentity(userID string) Identity {
	return Identity{
		UserID:   userID,
		UserType: UserTypeAdmin,
		RoleID:   permission.RoleAdmin,
		RoleName: permission.RoleAdmin,
		Enabled:  true,
		Verified: true,
	}
}

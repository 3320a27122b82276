package goAccount

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/kv"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/permission"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be built only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  kv.Store

	users     map[Platform]UserStore
	roleStore permission.Store

	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		users:  make(map[Platform]UserStore, 2),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the session ledger and the login limiter with client.
// Ledger keys are namespaced by Config.Store.Prefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the session ledger explicitly. It takes precedence over
// the Redis ledger; the Redis client is then used only for throttling.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithUserStore registers the user store of one platform.
func (b *Builder) WithUserStore(platform Platform, store UserStore) *Builder {
	b.users[platform] = store
	return b
}

// WithRoleStore sets the role and permission catalog.
func (b *Builder) WithRoleStore(store RoleStore) *Builder {
	b.roleStore = store
	return b
}

// WithAuditSink sets the sink for audit events. Nil disables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for operational warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine clock used for token timestamps and audit
// records. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or ledger store required")
		}
		store = kv.NewRedisStore(b.redis, cfg.Store.Prefix)
	}

	if len(b.users) == 0 {
		return nil, errors.New("at least one user store required")
	}
	for p, s := range b.users {
		if !p.Valid() {
			return nil, fmt.Errorf("unknown platform %q", p)
		}
		if s == nil {
			return nil, fmt.Errorf("nil user store for platform %s", p)
		}
	}

	if b.roleStore == nil {
		return nil, errors.New("role store required")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(
		jwtManagerConfig(cfg.JWT, cfg.JWT.AccessTTL, cfg.JWT.AccessKey, cfg.JWT.AccessPublicKey, now),
		jwtManagerConfig(cfg.JWT, cfg.JWT.RefreshTTL, cfg.JWT.RefreshKey, cfg.JWT.RefreshPublicKey, now),
	)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.New(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxBytes,
	})
	if err != nil {
		return nil, err
	}

	users := make(map[Platform]UserStore, len(b.users))
	for p, s := range b.users {
		users[p] = s
	}

	engine := &Engine{
		config:  cfg,
		codec:   codec,
		store:   store,
		users:   users,
		roles:   permission.NewResolver(b.roleStore, cfg.Permission.CacheTTL, now),
		hasher:  hasher,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		clock:   now,
	}

	if cfg.Audit.Enabled {
		engine.audit = b.auditSink
		if engine.audit == nil {
			engine.audit = NewSlogSink(logger)
		}
	}

	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			Login:          rate.Policy{MaxAttempts: cfg.Login.MaxAttempts, Window: cfg.Login.Cooldown},
			LoginIP:        rate.Policy{MaxAttempts: cfg.Login.IPMaxAttempts, Window: cfg.Login.IPCooldown},
			OneTimeRequest: rate.Policy{MaxAttempts: cfg.Login.OneTimeMaxRequests, Window: cfg.Login.OneTimeRequestWindow},
		})
	}

	engine.flows = internalflows.New(internalflows.Deps{
		Session: internalflows.SessionDeps{
			Codec:        codec,
			Store:        store,
			NewJTI:       internal.NewJTI,
			Key:          sessionKey,
			RevokedValue: revokedMarker,
			RevokeTTL:    cfg.Store.RevokeTTL,
		},
		OneTime: internalflows.OneTimeDeps{
			Store:      store,
			NewToken:   internal.NewOpaqueToken,
			Key:        oneTimeKey,
			ValidToken: internal.ValidOpaqueToken,
			ClaimTTL:   cfg.OneTime.ClaimTTL,
		},
	})

	b.built = true

	return engine, nil
}

func jwtManagerConfig(c JWTConfig, ttl time.Duration, key, public []byte, now func() time.Time) jwt.Config {
	return jwt.Config{
		TTL:           ttl,
		SigningMethod: jwt.SigningMethod(c.SigningMethod),
		PrivateKey:    cloneBytes(key),
		PublicKey:     cloneBytes(public),
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		Leeway:        c.Leeway,
		Now:           now,
	}
}

package goAccount

import (
	"errors"
	"time"
)

// Config groups every tunable of the Engine.
//
// Start from DefaultConfig and override what you need; Builder.Build
// rejects configurations that fail Validate.
type Config struct {
	JWT        JWTConfig
	Store      StoreConfig
	OneTime    OneTimeConfig
	Permission PermissionConfig
	Password   PasswordConfig
	Login      LoginConfig
	Metrics    MetricsConfig
	Audit      AuditConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the two token codecs.
//
// For hs256 AccessKey and RefreshKey are shared secrets. For ed25519 they
// are private keys and the matching public keys must be set as well. The
// access and refresh keys must differ.
type JWTConfig struct {
	SigningMethod    string // "hs256" (default) or "ed25519"
	AccessKey        []byte
	RefreshKey       []byte
	AccessPublicKey  []byte
	RefreshPublicKey []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Issuer           string
	Audience         string
	Leeway           time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the session ledger layout.
type StoreConfig struct {
	// Prefix namespaces every ledger key. Empty means no prefix.
	Prefix string
	// RevokeTTL is the lifetime of the revoked marker written by Revoke.
	RevokeTTL time.Duration
}

// OneTimeConfig sets the lifetimes of reset and verification tokens.
type OneTimeConfig struct {
	ResetTTL        time.Duration
	VerificationTTL time.Duration
	// ClaimTTL is how long a consumed token's burned record lingers.
	ClaimTTL time.Duration
}

// PermissionConfig controls role resolution.
type PermissionConfig struct {
	// CacheTTL bounds how long a resolved role may be served without a
	// store read. Zero disables caching.
	CacheTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the password policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxBytes    int
}

// LoginConfig holds the failed-login and one-time request budgets. A zero
// MaxAttempts disables the matching limiter.
type LoginConfig struct {
	MaxAttempts          int
	Cooldown             time.Duration
	IPMaxAttempts        int
	IPCooldown           time.Duration
	OneTimeMaxRequests   int
	OneTimeRequestWindow time.Duration
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AuditConfig toggles audit emission.
type AuditConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. JWT keys are left empty
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			RevokeTTL: time.Second,
		},
		OneTime: OneTimeConfig{
			ResetTTL:        7 * 24 * time.Hour,
			VerificationTTL: 7 * 24 * time.Hour,
			ClaimTTL:        time.Second,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
			MaxBytes:    1024,
		},
		Login: LoginConfig{
			MaxAttempts:          5,
			Cooldown:             15 * time.Minute,
			IPMaxAttempts:        50,
			IPCooldown:           15 * time.Minute,
			OneTimeMaxRequests:   5,
			OneTimeRequestWindow: time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.AccessKey) == 0 || len(c.JWT.RefreshKey) == 0 {
			return errors.New("hs256 requires AccessKey and RefreshKey")
		}
	case "ed25519":
		if len(c.JWT.AccessKey) == 0 || len(c.JWT.RefreshKey) == 0 {
			return errors.New("ed25519 requires AccessKey and RefreshKey")
		}
		if len(c.JWT.AccessPublicKey) == 0 || len(c.JWT.RefreshPublicKey) == 0 {
			return errors.New("ed25519 requires AccessPublicKey and RefreshPublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if string(c.JWT.AccessKey) == string(c.JWT.RefreshKey) {
		return errors.New("JWT AccessKey and RefreshKey must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Store
	if c.Store.RevokeTTL <= 0 {
		return errors.New("Store RevokeTTL must be > 0")
	}

	// One-time tokens
	if c.OneTime.ResetTTL <= 0 {
		return errors.New("OneTime ResetTTL must be > 0")
	}
	if c.OneTime.VerificationTTL <= 0 {
		return errors.New("OneTime VerificationTTL must be > 0")
	}
	if c.OneTime.ClaimTTL <= 0 {
		return errors.New("OneTime ClaimTTL must be > 0")
	}

	// Permission
	if c.Permission.CacheTTL < 0 {
		return errors.New("Permission CacheTTL must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxBytes < c.Password.MinLength {
		return errors.New("Password MaxBytes must be >= MinLength")
	}

	// Login
	if c.Login.MaxAttempts < 0 || c.Login.IPMaxAttempts < 0 || c.Login.OneTimeMaxRequests < 0 {
		return errors.New("Login attempt budgets must be >= 0")
	}
	if c.Login.MaxAttempts > 0 && c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0 when MaxAttempts is set")
	}
	if c.Login.IPMaxAttempts > 0 && c.Login.IPCooldown <= 0 {
		return errors.New("Login IPCooldown must be > 0 when IPMaxAttempts is set")
	}
	if c.Login.OneTimeMaxRequests > 0 && c.Login.OneTimeRequestWindow <= 0 {
		return errors.New("Login OneTimeRequestWindow must be > 0 when OneTimeMaxRequests is set")
	}

	return nil
}

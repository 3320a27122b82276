package goAccount

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// accountEnv holds raw env values. The JWT_* names match the variables the
// deployment already sets.
type accountEnv struct {
	AccessKey          string        `env:"JWT_AT_KEY,required"`
	RefreshKey         string        `env:"JWT_RT_KEY,required"`
	AccessTTLMinutes   int           `env:"JWT_AT_EXPIRY_DURATION_MINS"   envDefault:"15"`
	RefreshTTLDays     int           `env:"JWT_RT_EXPIRY_DURATION_DAYS"   envDefault:"7"`
	SigningMethod      string        `env:"ACCOUNT_JWT_SIGNING_METHOD"    envDefault:"hs256"`
	Issuer             string        `env:"ACCOUNT_JWT_ISSUER"`
	Audience           string        `env:"ACCOUNT_JWT_AUDIENCE"`
	Leeway             time.Duration `env:"ACCOUNT_JWT_LEEWAY"            envDefault:"0s"`
	StorePrefix        string        `env:"ACCOUNT_STORE_PREFIX"`
	PermissionCacheTTL time.Duration `env:"ACCOUNT_PERMISSION_CACHE_TTL"  envDefault:"0s"`
	LoginMaxAttempts   int           `env:"ACCOUNT_LOGIN_MAX_ATTEMPTS"    envDefault:"5"`
	LoginCooldown      time.Duration `env:"ACCOUNT_LOGIN_COOLDOWN"        envDefault:"15m"`
	MetricsEnabled     bool          `env:"ACCOUNT_METRICS_ENABLED"       envDefault:"true"`
	AuditEnabled       bool          `env:"ACCOUNT_AUDIT_ENABLED"         envDefault:"true"`
}

// LoadConfigFromEnv builds a Config from DefaultConfig and the process
// environment, then validates it.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (Config, error) {
	var raw accountEnv
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = raw.SigningMethod
	cfg.JWT.AccessKey = []byte(raw.AccessKey)
	cfg.JWT.RefreshKey = []byte(raw.RefreshKey)
	cfg.JWT.AccessTTL = time.Duration(raw.AccessTTLMinutes) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(raw.RefreshTTLDays) * 24 * time.Hour
	cfg.JWT.Issuer = raw.Issuer
	cfg.JWT.Audience = raw.Audience
	cfg.JWT.Leeway = raw.Leeway
	cfg.Store.Prefix = raw.StorePrefix
	cfg.Permission.CacheTTL = raw.PermissionCacheTTL
	cfg.Login.MaxAttempts = raw.LoginMaxAttempts
	cfg.Login.Cooldown = raw.LoginCooldown
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Audit.Enabled = raw.AuditEnabled

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

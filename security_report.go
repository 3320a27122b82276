package goAccount

import "time"

// SecurityReport summarizes the security posture of a built Engine. It holds
// no secrets and is safe to log at startup.
type SecurityReport struct {
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Leeway                time.Duration
	Argon2                PasswordConfigReport
	LedgerPrefix          string
	PermissionCacheTTL    time.Duration
	ResetTTL              time.Duration
	VerificationTTL       time.Duration
	Platforms             []Platform
	LoginThrottleActive   bool
	OneTimeThrottleActive bool
	AuditEnabled          bool
	MetricsEnabled        bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// SecurityReport summarizes the effective security settings of e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	var platforms []Platform
	for _, p := range platformOrder {
		if _, ok := e.users[p]; ok {
			platforms = append(platforms, p)
		}
	}

	// Throttling needs the Redis-backed limiter.
	throttled := e.limiter != nil

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Leeway:           e.config.JWT.Leeway,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
		},
		LedgerPrefix:          e.config.Store.Prefix,
		PermissionCacheTTL:    e.config.Permission.CacheTTL,
		ResetTTL:              e.config.OneTime.ResetTTL,
		VerificationTTL:       e.config.OneTime.VerificationTTL,
		Platforms:             platforms,
		LoginThrottleActive:   throttled && e.config.Login.MaxAttempts > 0,
		OneTimeThrottleActive: throttled && e.config.Login.OneTimeMaxRequests > 0,
		AuditEnabled:          e.audit != nil,
		MetricsEnabled:        e.metrics.Enabled(),
	}
}

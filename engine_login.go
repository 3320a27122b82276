package goAccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/password"
)

// platformOrder is the lookup order for ids whose platform is unknown.
var platformOrder = []Platform{PlatformAdmin, PlatformConsumer}

// Login authenticates email and password against the platform's users and
// issues a new token pair, replacing any pair issued earlier.
//
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
// Failed attempts count against the login budget when a Redis client is
// configured.
func (e *Engine) Login(ctx context.Context, platform Platform, email, pw string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	users, err := e.userStore(platform)
	if err != nil {
		return TokenPair{}, err
	}

	email = strings.TrimSpace(email)
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
			return TokenPair{}, e.loginLimitError(ctx, err)
		}
	}

	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, e.failLogin(ctx, platform, "", email, ErrInvalidCredentials)
		}
		return TokenPair{}, err
	}

	if platform == PlatformConsumer && user.LoginType != LoginTypeEmail {
		return TokenPair{}, e.failLogin(ctx, platform, user.ID, email, ErrLoginTypeUnsupported)
	}

	ok, err := e.hasher.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		return TokenPair{}, e.failLogin(ctx, platform, user.ID, email, ErrInvalidCredentials)
	}

	if !user.Enabled {
		return TokenPair{}, e.failLogin(ctx, platform, user.ID, email, ErrAccountDisabled)
	}
	if !user.Verified {
		return TokenPair{}, e.failLogin(ctx, platform, user.ID, email, ErrAccountUnverified)
	}

	id, err := e.identityFor(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := e.IssuePair(ctx, id)
	if err != nil {
		return TokenPair{}, err
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, email); err != nil {
			e.logger.WarnContext(ctx, "reset login budget", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	if err := users.RecordLogin(ctx, user.ID, e.now().UTC()); err != nil {
		e.logger.WarnContext(ctx, "record last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	if rehash, _ := e.hasher.NeedsRehash(user.PasswordHash); rehash {
		if upgraded, err := e.hasher.Hash(pw); err == nil {
			err = users.SwapPasswordHash(ctx, user.ID, user.PasswordHash, upgraded)
			if err != nil && !errors.Is(err, ErrUserChanged) {
				e.logger.WarnContext(ctx, "upgrade password hash", slog.String("user_id", user.ID), slog.Any("error", err))
			}
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventLoginSuccess, userID: user.ID, platform: platform})
	return pair, nil
}

func (e *Engine) failLogin(ctx context.Context, platform Platform, userID, email string, cause error) error {
	if e.limiter != nil {
		if err := e.limiter.FailLogin(ctx, email, clientIPFromContext(ctx)); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.WarnContext(ctx, "record failed login", slog.Any("error", err))
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, userID: userID, platform: platform, err: cause})
	return cause
}

func (e *Engine) loginLimitError(ctx context.Context, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricLoginRateLimited)
		e.emitRateLimit(ctx, "login", ErrLoginRateLimited)
		return ErrLoginRateLimited
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Logout revokes every token of userID. The user must exist on one of the
// configured platforms.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	user, platform, err := e.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.Revoke(ctx, user.ID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditRecord{eventType: auditEventLogout, userID: user.ID, platform: platform})
	return nil
}

// RefreshToken exchanges a refresh token for a new pair.
//
// Unlike Refresh, the identity is reloaded from the user store so role
// changes and status changes since the last issue take effect.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	claims, err := e.Verify(ctx, refreshToken, RefreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventRefreshInvalid, err: err})
		return TokenPair{}, err
	}

	user, platform, err := e.findUser(ctx, claims.UserID())
	if err != nil {
		return TokenPair{}, err
	}
	if !user.Enabled {
		return TokenPair{}, ErrAccountDisabled
	}
	if !user.Verified {
		return TokenPair{}, ErrAccountUnverified
	}

	id, err := e.identityFor(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := e.rotate(ctx, claims, id)
	if err != nil {
		e.emitAudit(ctx, auditRecord{eventType: auditEventRefreshInvalid, userID: user.ID, platform: platform, err: err})
		return TokenPair{}, err
	}

	if err := e.users[platform].RecordRefresh(ctx, user.ID, e.now().UTC()); err != nil {
		e.logger.WarnContext(ctx, "record last refresh", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	e.emitAudit(ctx, auditRecord{eventType: auditEventRefreshSuccess, userID: user.ID, platform: platform})
	return pair, nil
}

// ChangePassword replaces the password of userID after checking the old one,
// then revokes the user's sessions.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	user, platform, err := e.findUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordChange, userID: userID, platform: platform, err: ErrInvalidCredentials})
		return ErrInvalidCredentials
	}
	if oldPassword == newPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordChange, userID: userID, platform: platform, err: ErrPasswordReuse})
		return ErrPasswordReuse
	}

	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	// The swap fails if a reset or another change landed after the old
	// password was checked.
	if err := e.users[platform].SwapPasswordHash(ctx, user.ID, user.PasswordHash, hash); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordChange, userID: userID, platform: platform})
	return e.Revoke(ctx, userID)
}

func (e *Engine) hashNewPassword(pw string) (string, error) {
	if utf8.RuneCountInString(pw) < e.config.Password.MinLength {
		return "", fmt.Errorf("%w: at least %d characters required", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return "", err
	}
	return hash, nil
}

func (e *Engine) userStore(p Platform) (UserStore, error) {
	s, ok := e.users[p]
	if !ok {
		return nil, fmt.Errorf("%w: no user store for platform %q", ErrEngineNotReady, p)
	}
	return s, nil
}

// findUser looks userID up on every configured platform in platformOrder.
func (e *Engine) findUser(ctx context.Context, userID string) (UserRecord, Platform, error) {
	if userID == "" {
		return UserRecord{}, "", ErrUserNotFound
	}
	for _, p := range platformOrder {
		s, ok := e.users[p]
		if !ok {
			continue
		}
		user, err := s.FindByID(ctx, userID)
		if err == nil {
			return user, p, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, "", err
		}
	}
	return UserRecord{}, "", ErrUserNotFound
}

func (e *Engine) identityFor(ctx context.Context, user UserRecord) (Identity, error) {
	role, err := e.roles.RoleByID(ctx, user.RoleID)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve role of user %s: %w", user.ID, err)
	}
	return Identity{
		UserID:   user.ID,
		UserType: user.UserType,
		RoleID:   role.ID,
		RoleName: role.Name,
		Enabled:  user.Enabled,
		Verified: user.Verified,
	}, nil
}

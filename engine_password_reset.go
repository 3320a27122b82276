package goAccount

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goAccount/internal/rate"
)

// RequestPasswordReset issues a reset token for the account with email on
// platform and returns it for delivery by the caller.
//
// The account must be enabled and verified. Consumer accounts must also use
// email login.
func (e *Engine) RequestPasswordReset(ctx context.Context, platform Platform, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	users, err := e.userStore(platform)
	if err != nil {
		return "", err
	}
	email = strings.TrimSpace(email)

	if err := e.allowOneTimeRequest(ctx, email); err != nil {
		return "", err
	}

	user, err := users.FindByEmail(ctx, email)
	if err == nil {
		err = checkResettable(platform, user)
	}
	if err != nil {
		e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordResetRequest, userID: user.ID, platform: platform, err: err})
		return "", err
	}

	token, err := e.IssueOneTimeToken(ctx, resetPurpose(platform), user.ID, 0)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordResetRequest, userID: user.ID, platform: platform})
	return token, nil
}

// ConfirmPasswordReset consumes a reset token and sets newPassword on its
// owner, then revokes the owner's sessions.
//
// A password rejected by policy fails before the token is looked at, so the
// token stays usable.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, platform Platform, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !platform.Valid() {
		return fmt.Errorf("unknown platform %q", platform)
	}

	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return err
	}

	user, err := e.ConsumeOneTimeToken(ctx, resetPurpose(platform), token, func(_ context.Context, u UserRecord) (OneTimeChange, error) {
		if err := checkResettable(platform, u); err != nil {
			return OneTimeChange{}, err
		}
		return OneTimeChange{PasswordHash: hash}, nil
	})
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordResetConfirm, platform: platform, err: err})
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordResetConfirm, userID: user.ID, platform: platform})
	return e.Revoke(ctx, user.ID)
}

func checkResettable(platform Platform, user UserRecord) error {
	if !user.Enabled {
		return ErrAccountDisabled
	}
	if !user.Verified {
		return ErrAccountUnverified
	}
	if platform == PlatformConsumer && user.LoginType != LoginTypeEmail {
		return ErrLoginTypeUnsupported
	}
	return nil
}

func (e *Engine) allowOneTimeRequest(ctx context.Context, identifier string) error {
	if e.limiter == nil {
		return nil
	}
	err := e.limiter.AllowOneTimeRequest(ctx, identifier)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricOneTimeRateLimited)
		e.emitRateLimit(ctx, "onetime", ErrOneTimeRateLimited)
		return ErrOneTimeRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

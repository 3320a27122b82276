package goAccount

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// OneTimeApply is the purpose-specific step of a consume. It checks the
// owner and returns the change to write when the token is burned. Returning
// an error aborts the consume and leaves the token usable.
type OneTimeApply func(ctx context.Context, user UserRecord) (OneTimeChange, error)

// IssueOneTimeToken creates an opaque token for purpose owned by userID.
//
// The token is stored on the user record first and then in the ledger with
// ttl. A zero ttl uses the configured lifetime for the purpose. Issuing a new
// token for the same purpose replaces the persisted copy, so only the latest
// token can be consumed.
func (e *Engine) IssueOneTimeToken(ctx context.Context, purpose OneTimePurpose, userID string, ttl time.Duration) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	platform, ok := purpose.Platform()
	if !ok {
		return "", fmt.Errorf("unknown one-time purpose %q", purpose)
	}
	users, err := e.userStore(platform)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = e.oneTimeTTL(purpose)
	}

	persist := func(ctx context.Context, token string) error {
		return users.SetOneTimeToken(ctx, userID, purpose, token)
	}

	res := e.flows.IssueOneTime(ctx, string(purpose), userID, ttl, persist)
	switch res.Failure {
	case internalflows.OneTimeFailureNone:
		return res.Token, nil
	case internalflows.OneTimeFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return "", res.Err
	}
}

// ConsumeOneTimeToken redeems token for purpose and runs apply on the owner.
//
// The token must be present in the ledger and match the copy persisted on
// the owner record. Every unusable token fails with ErrTokenInvalidOrExpired.
// An error from apply is returned as is and the token is not consumed. On
// success both copies are destroyed and the change from apply is written in
// the same guarded update that clears the persisted copy. The returned
// record is the owner as loaded with that change applied.
func (e *Engine) ConsumeOneTimeToken(ctx context.Context, purpose OneTimePurpose, token string, apply OneTimeApply) (UserRecord, error) {
	if !e.ready() {
		return UserRecord{}, ErrEngineNotReady
	}
	platform, ok := purpose.Platform()
	if !ok {
		return UserRecord{}, ErrTokenInvalidOrExpired
	}
	users, err := e.userStore(platform)
	if err != nil {
		return UserRecord{}, err
	}

	var (
		user   UserRecord
		change OneTimeChange
	)
	hooks := internalflows.OneTimeHooks{
		Load: func(ctx context.Context, ownerID string) (string, error) {
			u, err := users.FindByID(ctx, ownerID)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					return "", internalflows.ErrOwnerNotFound
				}
				return "", err
			}
			user = u
			return user.oneTimeToken(purpose), nil
		},
		Apply: func(ctx context.Context) error {
			if apply == nil {
				return nil
			}
			var err error
			change, err = apply(ctx, user)
			return err
		},
		Commit: func(ctx context.Context) error {
			return users.CompleteOneTime(ctx, user.ID, purpose, token, change)
		},
	}

	res := e.flows.ConsumeOneTime(ctx, string(purpose), token, hooks)
	switch res.Failure {
	case internalflows.OneTimeFailureNone:
		user.setOneTimeToken(purpose, "")
		if change.PasswordHash != "" {
			user.PasswordHash = change.PasswordHash
		}
		if change.MarkVerified {
			user.Verified = true
		}
		return user, nil
	case internalflows.OneTimeFailurePersist:
		if errors.Is(res.Err, ErrTokenInvalidOrExpired) {
			return UserRecord{}, ErrTokenInvalidOrExpired
		}
		return UserRecord{}, res.Err
	case internalflows.OneTimeFailureInvalid:
		return UserRecord{}, ErrTokenInvalidOrExpired
	case internalflows.OneTimeFailureRejected:
		return UserRecord{}, res.Err
	case internalflows.OneTimeFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		return UserRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return UserRecord{}, res.Err
	}
}

func (e *Engine) oneTimeTTL(p OneTimePurpose) time.Duration {
	if p.IsVerification() {
		return e.config.OneTime.VerificationTTL
	}
	return e.config.OneTime.ResetTTL
}

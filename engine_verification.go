package goAccount

import "context"

// RequestAccountVerification issues a verification token for the consumer
// account userID. Already verified accounts fail with ErrAlreadyVerified.
func (e *Engine) RequestAccountVerification(ctx context.Context, userID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	users, err := e.userStore(PlatformConsumer)
	if err != nil {
		return "", err
	}
	if err := e.allowOneTimeRequest(ctx, userID); err != nil {
		return "", err
	}

	user, err := users.FindByID(ctx, userID)
	if err == nil && user.Verified {
		err = ErrAlreadyVerified
	}
	if err != nil {
		e.emitAudit(ctx, auditRecord{eventType: auditEventVerificationRequest, userID: userID, platform: PlatformConsumer, err: err})
		return "", err
	}

	token, err := e.IssueOneTimeToken(ctx, PurposeVerifyConsumer, user.ID, 0)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricVerificationRequest)
	e.emitAudit(ctx, auditRecord{eventType: auditEventVerificationRequest, userID: user.ID, platform: PlatformConsumer})
	return token, nil
}

// ConfirmAccountVerification consumes a verification token and marks its
// owner verified. A token whose owner is already verified fails with
// ErrAlreadyVerified and is not consumed.
func (e *Engine) ConfirmAccountVerification(ctx context.Context, token string) (UserRecord, error) {
	user, err := e.ConsumeOneTimeToken(ctx, PurposeVerifyConsumer, token, func(_ context.Context, u UserRecord) (OneTimeChange, error) {
		if u.Verified {
			return OneTimeChange{}, ErrAlreadyVerified
		}
		return OneTimeChange{MarkVerified: true}, nil
	})
	if err != nil {
		e.metricInc(MetricVerificationFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventVerificationConfirm, platform: PlatformConsumer, err: err})
		return UserRecord{}, err
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventVerificationConfirm, userID: user.ID, platform: PlatformConsumer})
	return user, nil
}

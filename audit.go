package goAccount

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLogout                = "logout"
	auditEventSessionRevoked        = "session_revoked"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventPasswordChange        = "password_change"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventVerificationRequest   = "verification_request"
	auditEventVerificationConfirm   = "verification_confirm"
	auditEventAccountStatusChange   = "account_status_change"
	auditEventRoleChange            = "role_change"
	auditEventRolePermissionsUpdate = "role_permissions_update"
	auditEventPermissionDenied      = "permission_denied"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRevoked            AuditErrorCode = "revoked"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrAlreadyVerified    AuditErrorCode = "already_verified"
	auditErrLoginType          AuditErrorCode = "login_type_unsupported"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrSelfModification   AuditErrorCode = "self_modification"
	auditErrSuperuser          AuditErrorCode = "superuser_protected"
	auditErrRoleMismatch       AuditErrorCode = "role_type_mismatch"
	auditErrRoleNotFound       AuditErrorCode = "role_not_found"
	auditErrRevokeIncomplete   AuditErrorCode = "revoke_incomplete"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

type auditRecord struct {
	eventType string
	userID    string
	actorID   string
	platform  Platform
	err       error
	metadata  func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if rec.metadata != nil {
		metadata = rec.metadata()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: rec.eventType,
		UserID:    rec.userID,
		ActorID:   rec.actorID,
		Platform:  string(rec.platform),
		IP:        clientIPFromContext(ctx),
		Success:   rec.err == nil,
		Metadata:  metadata,
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, err error) {
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRateLimitTriggered,
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{"scope": scope}
		},
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrOneTimeRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenInvalidOrExpired):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrLoginTypeUnsupported):
		return auditErrLoginType
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrSelfModification):
		return auditErrSelfModification
	case errors.Is(err, ErrSuperuserProtected):
		return auditErrSuperuser
	case errors.Is(err, ErrRoleTypeMismatch):
		return auditErrRoleMismatch
	case errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrPermissionNotFound):
		return auditErrRoleNotFound
	case errors.Is(err, ErrRevokeIncomplete):
		return auditErrRevokeIncomplete
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

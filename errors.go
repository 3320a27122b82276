package goAccount

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goAccount/permission"
)

var (
	// ErrTokenInvalid is the parent of every structural token failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenMalformed is returned for tokens that cannot be decoded.
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	// ErrTokenSignature is returned when the signature does not verify.
	ErrTokenSignature = fmt.Errorf("%w: bad signature", ErrTokenInvalid)
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
	// ErrTokenRevoked is returned when the ledger no longer holds the token's jti.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrAccountDisabled is returned for disabled accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountUnverified is returned for accounts that have not completed verification.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAlreadyVerified is returned when verifying an account that is already verified.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrUserNotFound is returned when a user id or email is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserChanged is returned when a guarded user update finds the record
	// modified since it was read.
	ErrUserChanged = errors.New("user record changed concurrently")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginTypeUnsupported is returned when a consumer account does not use email login.
	ErrLoginTypeUnsupported = errors.New("account does not use email login")
	// ErrLoginRateLimited is returned when failed logins exceed the configured budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrOneTimeRateLimited is returned when reset or verification requests exceed the budget.
	ErrOneTimeRateLimited = errors.New("one-time token requests rate limited")
	// ErrPasswordPolicy is returned when a new password is rejected by policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")

	// ErrStoreUnavailable wraps ledger and record store outages.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRevokeIncomplete is returned when one or both revoke writes failed.
	ErrRevokeIncomplete = errors.New("revoke incomplete")
	// ErrTokenInvalidOrExpired is the single error for every unusable one-time token.
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")

	// ErrRoleNotFound is returned for unknown role names or ids.
	ErrRoleNotFound = permission.ErrRoleNotFound
	// ErrPermissionNotFound is returned when a role references a missing permission.
	ErrPermissionNotFound = permission.ErrPermissionNotFound
	// ErrPermissionDenied is returned when the caller's role lacks a capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSelfModification is returned when an actor targets their own account.
	ErrSelfModification = errors.New("cannot modify own account")
	// ErrSuperuserProtected is returned when an actor targets a superuser account.
	ErrSuperuserProtected = errors.New("superuser accounts cannot be modified")
	// ErrRoleTypeMismatch is returned when a role is assigned to a user of another type.
	ErrRoleTypeMismatch = errors.New("role type does not match user type")

	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

package goAccount

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/permission"
)

// Platform identifies which user population an account belongs to.
type Platform string

const (
	// PlatformAdmin is the administrative/partner platform.
	PlatformAdmin Platform = "AP"
	// PlatformConsumer is the consumer mobile platform.
	PlatformConsumer Platform = "MP"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformAdmin || p == PlatformConsumer
}

// User types carried in the userType claim.
const (
	UserTypeAdmin   = "admin"
	UserTypePartner = "partner"
	UserTypeYouth   = "youth"
)

// PlatformForUserType maps a user type to the platform that stores it.
func PlatformForUserType(userType string) (Platform, bool) {
	switch userType {
	case UserTypeAdmin, UserTypePartner:
		return PlatformAdmin, true
	case UserTypeYouth:
		return PlatformConsumer, true
	default:
		return "", false
	}
}

// LoginTypeEmail marks consumer accounts that sign in with email and password.
const LoginTypeEmail = "email"

// OneTimePurpose namespaces one-time tokens in the ledger.
type OneTimePurpose string

const (
	// PurposeResetAdmin is a password reset on the admin platform.
	PurposeResetAdmin OneTimePurpose = "reset-admin"
	// PurposeResetConsumer is a password reset on the consumer platform.
	PurposeResetConsumer OneTimePurpose = "reset-consumer"
	// PurposeVerifyConsumer is a consumer account verification.
	PurposeVerifyConsumer OneTimePurpose = "verify-consumer"
)

// Platform returns the platform whose user records hold tokens of this purpose.
func (p OneTimePurpose) Platform() (Platform, bool) {
	switch p {
	case PurposeResetAdmin:
		return PlatformAdmin, true
	case PurposeResetConsumer, PurposeVerifyConsumer:
		return PlatformConsumer, true
	default:
		return "", false
	}
}

// IsVerification reports whether tokens of p live in the verification
// token field rather than the reset token field.
func (p OneTimePurpose) IsVerification() bool {
	return p == PurposeVerifyConsumer
}

func resetPurpose(platform Platform) OneTimePurpose {
	if platform == PlatformConsumer {
		return PurposeResetConsumer
	}
	return PurposeResetAdmin
}

// TokenKind selects access or refresh tokens.
type TokenKind = jwt.Kind

const (
	// AccessToken is the short-lived token presented on every request.
	AccessToken TokenKind = jwt.KindAccess
	// RefreshToken is the long-lived token exchanged for a new pair.
	RefreshToken TokenKind = jwt.KindRefresh
)

// Identity is the account snapshot signed into issued tokens.
type Identity = jwt.Identity

// Claims are the verified claims of a token.
type Claims = jwt.Claims

// TokenPair is an issued access and refresh token.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// UserRecord is the persistent account record of either platform.
//
// ResetToken and VerificationToken hold the persisted half of outstanding
// one-time tokens. They are cleared when the token is consumed.
type UserRecord struct {
	ID                string
	Email             string
	UserType          string
	RoleID            string
	PasswordHash      string
	Enabled           bool
	Verified          bool
	LoginType         string
	ResetToken        string
	VerificationToken string
	LastLogin         time.Time
	LastRefresh       time.Time
}

func (u *UserRecord) oneTimeToken(p OneTimePurpose) string {
	if p.IsVerification() {
		return u.VerificationToken
	}
	return u.ResetToken
}

func (u *UserRecord) setOneTimeToken(p OneTimePurpose, token string) {
	if p.IsVerification() {
		u.VerificationToken = token
		return
	}
	u.ResetToken = token
}

// OneTimeChange is the field update applied when a one-time token is
// consumed.
type OneTimeChange struct {
	// PasswordHash replaces the stored hash when non-empty.
	PasswordHash string
	// MarkVerified sets the verified flag.
	MarkVerified bool
}

// UserStore persists the user records of one platform.
//
// FindByID and FindByEmail return an error wrapping ErrUserNotFound for
// unknown users and ErrStoreUnavailable for backend failures. FindByEmail
// matches case-insensitively.
//
// Save writes a whole record and is meant for account creation. Engine
// flows only use the narrow updates, each of which touches the named
// fields and nothing else, so concurrent flows on one user do not undo each
// other. The narrow updates return ErrUserNotFound when id is unknown.
type UserStore interface {
	FindByID(ctx context.Context, id string) (UserRecord, error)
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	Save(ctx context.Context, user UserRecord) error

	// RecordLogin sets LastLogin.
	RecordLogin(ctx context.Context, id string, at time.Time) error
	// RecordRefresh sets LastRefresh.
	RecordRefresh(ctx context.Context, id string, at time.Time) error
	// SetEnabled sets the enabled flag.
	SetEnabled(ctx context.Context, id string, enabled bool) error
	// SetRole sets RoleID.
	SetRole(ctx context.Context, id, roleID string) error
	// SetPasswordHash replaces the password hash unconditionally.
	SetPasswordHash(ctx context.Context, id, hash string) error
	// SwapPasswordHash replaces the password hash only while it still equals
	// current, failing with ErrUserChanged otherwise.
	SwapPasswordHash(ctx context.Context, id, current, next string) error
	// SetOneTimeToken stores token in the field used by purpose.
	SetOneTimeToken(ctx context.Context, id string, purpose OneTimePurpose, token string) error
	// CompleteOneTime clears the purpose's token field and applies change,
	// only while the field still holds token. Otherwise it fails with
	// ErrTokenInvalidOrExpired and changes nothing.
	CompleteOneTime(ctx context.Context, id string, purpose OneTimePurpose, token string, change OneTimeChange) error
}

// RoleStore is the persistent role and permission catalog.
type RoleStore = permission.Store

type (
	// AuditEvent is a single security-relevant record.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events synchronously.
	AuditSink = internalaudit.Sink
	// NoOpSink drops audit events.
	NoOpSink = internalaudit.NoOpSink
	// ChannelSink buffers events in a channel and drops them when full.
	ChannelSink = internalaudit.ChannelSink
	// JSONWriterSink writes one JSON object per event.
	JSONWriterSink = internalaudit.JSONWriterSink
	// SlogSink logs events through a structured logger.
	SlogSink = internalaudit.SlogSink
	// MultiSink fans events out to several sinks.
	MultiSink = internalaudit.MultiSink
)

// NewChannelSink returns a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
var NewJSONWriterSink = internalaudit.NewJSONWriterSink

// NewSlogSink returns a sink logging through logger.
var NewSlogSink = internalaudit.NewSlogSink

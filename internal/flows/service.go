package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccount/jwt"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Session SessionDeps
	OneTime OneTimeDeps
}

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Session.Codec != nil && s.deps.Session.Store != nil
}

// IssuePair runs RunIssuePair with the session deps.
func (s Service) IssuePair(ctx context.Context, id jwt.Identity) IssueResult {
	return RunIssuePair(ctx, id, s.deps.Session)
}

// Verify runs RunVerify with the session deps.
func (s Service) Verify(ctx context.Context, token string, kind jwt.Kind) VerifyResult {
	return RunVerify(ctx, token, kind, s.deps.Session)
}

// Revoke runs RunRevoke with the session deps.
func (s Service) Revoke(ctx context.Context, userID string) error {
	return RunRevoke(ctx, userID, s.deps.Session)
}

// Rotate runs RunRotate with the session deps.
func (s Service) Rotate(ctx context.Context, current *jwt.Claims, id jwt.Identity) IssueResult {
	return RunRotate(ctx, current, id, s.deps.Session)
}

// IssueOneTime runs RunIssueOneTime with the one-time deps.
func (s Service) IssueOneTime(
	ctx context.Context,
	purpose, ownerID string,
	ttl time.Duration,
	persist func(context.Context, string) error,
) OneTimeResult {
	return RunIssueOneTime(ctx, purpose, ownerID, ttl, persist, s.deps.OneTime)
}

// ConsumeOneTime runs RunConsumeOneTime with the one-time deps.
func (s Service) ConsumeOneTime(ctx context.Context, purpose, token string, hooks OneTimeHooks) OneTimeResult {
	return RunConsumeOneTime(ctx, purpose, token, hooks, s.deps.OneTime)
}

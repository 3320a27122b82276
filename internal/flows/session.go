package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/kv"
)

// SessionFailureKind classifies session flow failures for root-level mapping.
type SessionFailureKind int

const (
	SessionFailureNone SessionFailureKind = iota
	SessionFailureMalformed
	SessionFailureSignature
	SessionFailureExpired
	SessionFailureWrongKind
	SessionFailureClaims
	SessionFailureStoreUnavailable
	SessionFailureRevoked
	SessionFailureDisabled
	SessionFailureUnverified
	SessionFailureIssue
)

// TokenCodec signs and verifies tokens of both kinds.
type TokenCodec interface {
	Issue(kind jwt.Kind, id jwt.Identity, jti string) (string, time.Time, error)
	Parse(kind jwt.Kind, token string) (*jwt.Claims, error)
	TTL(kind jwt.Kind) time.Duration
}

// SessionDeps captures session flow dependencies.
type SessionDeps struct {
	Codec  TokenCodec
	Store  kv.Store
	NewJTI func() (string, error)
	// Key builds the ledger key for a user and token kind.
	Key func(kind jwt.Kind, userID string) string
	// RevokedValue is written over both records on revoke. It never equals a jti.
	RevokedValue string
	RevokeTTL    time.Duration
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	AccessJTI        string
	RefreshJTI       string
}

// IssueResult carries either an issued pair or failure metadata.
type IssueResult struct {
	Failure SessionFailureKind
	Err     error
	Pair    Pair
}

// VerifyResult carries either verified claims or failure metadata.
type VerifyResult struct {
	Failure SessionFailureKind
	Err     error
	Claims  *jwt.Claims
}

// RunIssuePair signs a fresh pair for id and pins both jtis in the ledger.
// Any previously issued pair for the user stops verifying once the writes land.
func RunIssuePair(ctx context.Context, id jwt.Identity, deps SessionDeps) IssueResult {
	pair, err := signPair(id, deps)
	if err != nil {
		return IssueResult{Failure: SessionFailureIssue, Err: err}
	}

	if err := deps.Store.Set(ctx, deps.Key(jwt.KindAccess, id.UserID), pair.AccessJTI, deps.Codec.TTL(jwt.KindAccess)); err != nil {
		return IssueResult{Failure: storeFailure(err), Err: err}
	}
	if err := deps.Store.Set(ctx, deps.Key(jwt.KindRefresh, id.UserID), pair.RefreshJTI, deps.Codec.TTL(jwt.KindRefresh)); err != nil {
		return IssueResult{Failure: storeFailure(err), Err: err}
	}

	return IssueResult{Pair: pair}
}

// RunVerify checks token in a fixed order: codec validity, ledger lookup,
// jti match, then the enabled and verified snapshot embedded in the token.
// A ledger outage fails closed.
func RunVerify(ctx context.Context, token string, kind jwt.Kind, deps SessionDeps) VerifyResult {
	claims, err := deps.Codec.Parse(kind, token)
	if err != nil {
		return VerifyResult{Failure: codecFailure(err), Err: err}
	}

	current, err := deps.Store.Get(ctx, deps.Key(kind, claims.UserID()))
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return VerifyResult{Failure: SessionFailureRevoked, Err: err, Claims: claims}
	case err != nil:
		return VerifyResult{Failure: SessionFailureStoreUnavailable, Err: err, Claims: claims}
	case current != claims.JTI():
		return VerifyResult{Failure: SessionFailureRevoked, Claims: claims}
	}

	if !claims.Enabled {
		return VerifyResult{Failure: SessionFailureDisabled, Claims: claims}
	}
	if !claims.Verified {
		return VerifyResult{Failure: SessionFailureUnverified, Claims: claims}
	}

	return VerifyResult{Claims: claims}
}

// RunRevoke overwrites both ledger records for userID with the revoked
// sentinel. Both writes are attempted even if the first fails; the returned
// error joins whichever failed.
func RunRevoke(ctx context.Context, userID string, deps SessionDeps) error {
	var errs []error
	for _, kind := range []jwt.Kind{jwt.KindAccess, jwt.KindRefresh} {
		if err := deps.Store.Set(ctx, deps.Key(kind, userID), deps.RevokedValue, deps.RevokeTTL); err != nil {
			errs = append(errs, fmt.Errorf("%s record: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// RunRotate replaces the pair identified by current with a new pair for id.
//
// The refresh record is swapped with compare-and-set against the presented
// refresh jti, so of several concurrent rotations with the same refresh
// token exactly one succeeds; the others fail as revoked. The access record
// is written only after the swap is won.
func RunRotate(ctx context.Context, current *jwt.Claims, id jwt.Identity, deps SessionDeps) IssueResult {
	if current == nil || current.TokenType != jwt.KindRefresh {
		return IssueResult{Failure: SessionFailureWrongKind, Err: jwt.ErrWrongKind}
	}
	if id.UserID != current.UserID() {
		return IssueResult{Failure: SessionFailureClaims, Err: errors.New("rotation subject mismatch")}
	}

	pair, err := signPair(id, deps)
	if err != nil {
		return IssueResult{Failure: SessionFailureIssue, Err: err}
	}

	swapped, err := deps.Store.CompareAndSet(
		ctx,
		deps.Key(jwt.KindRefresh, id.UserID),
		current.JTI(),
		pair.RefreshJTI,
		deps.Codec.TTL(jwt.KindRefresh),
	)
	if err != nil {
		return IssueResult{Failure: storeFailure(err), Err: err}
	}
	if !swapped {
		return IssueResult{Failure: SessionFailureRevoked}
	}

	if err := deps.Store.Set(ctx, deps.Key(jwt.KindAccess, id.UserID), pair.AccessJTI, deps.Codec.TTL(jwt.KindAccess)); err != nil {
		return IssueResult{Failure: storeFailure(err), Err: err}
	}

	return IssueResult{Pair: pair}
}

func signPair(id jwt.Identity, deps SessionDeps) (Pair, error) {
	atJTI, err := deps.NewJTI()
	if err != nil {
		return Pair{}, err
	}
	rtJTI, err := deps.NewJTI()
	if err != nil {
		return Pair{}, err
	}

	at, atExp, err := deps.Codec.Issue(jwt.KindAccess, id, atJTI)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	rt, rtExp, err := deps.Codec.Issue(jwt.KindRefresh, id, rtJTI)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{
		AccessToken:      at,
		RefreshToken:     rt,
		AccessExpiresAt:  atExp,
		RefreshExpiresAt: rtExp,
		AccessJTI:        atJTI,
		RefreshJTI:       rtJTI,
	}, nil
}

func codecFailure(err error) SessionFailureKind {
	switch {
	case errors.Is(err, jwt.ErrMalformed):
		return SessionFailureMalformed
	case errors.Is(err, jwt.ErrSignature):
		return SessionFailureSignature
	case errors.Is(err, jwt.ErrExpired):
		return SessionFailureExpired
	case errors.Is(err, jwt.ErrWrongKind):
		return SessionFailureWrongKind
	default:
		return SessionFailureClaims
	}
}

func storeFailure(err error) SessionFailureKind {
	if errors.Is(err, kv.ErrInvalidTTL) {
		return SessionFailureIssue
	}
	return SessionFailureStoreUnavailable
}

package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/kv"
)

// OneTimeFailureKind classifies one-time token failures.
type OneTimeFailureKind int

const (
	OneTimeFailureNone OneTimeFailureKind = iota
	// OneTimeFailureInvalid covers every "token not usable" case: unknown,
	// expired, mismatched with the persisted copy, or already consumed.
	OneTimeFailureInvalid
	OneTimeFailureRejected
	OneTimeFailureStoreUnavailable
	OneTimeFailureGenerate
	OneTimeFailurePersist
)

// OneTimeDeps captures one-time token dependencies.
type OneTimeDeps struct {
	Store    kv.Store
	NewToken func() (string, error)
	// Key builds the store key for a purpose and token.
	Key func(purpose, token string) string
	// ValidToken rejects malformed tokens before any store call. Nil accepts all.
	ValidToken func(string) bool
	// ClaimTTL is the lifetime of the burned record left behind by a consume.
	ClaimTTL time.Duration
}

// OneTimeHooks binds a consume to the persistent owner record.
type OneTimeHooks struct {
	// Load fetches the owner and returns the token copy persisted on it.
	// Returning ErrOwnerNotFound makes the token invalid.
	Load func(ctx context.Context, ownerID string) (string, error)
	// Apply runs the purpose-specific precondition and mutation. An error
	// here leaves the token unconsumed.
	Apply func(ctx context.Context) error
	// Commit clears the persisted copy and saves the owner.
	Commit func(ctx context.Context) error
}

// ErrOwnerNotFound is returned by OneTimeHooks.Load when the owner is gone.
var ErrOwnerNotFound = errors.New("one-time token owner not found")

// OneTimeResult carries failure metadata and, on success, the owner id.
type OneTimeResult struct {
	Failure OneTimeFailureKind
	Err     error
	OwnerID string
	Token   string
}

// RunIssueOneTime generates a token, persists it on the owner through
// persist, then records purpose/token -> ownerID in the store with ttl.
func RunIssueOneTime(
	ctx context.Context,
	purpose, ownerID string,
	ttl time.Duration,
	persist func(ctx context.Context, token string) error,
	deps OneTimeDeps,
) OneTimeResult {
	token, err := deps.NewToken()
	if err != nil || token == "" {
		if err == nil {
			err = errors.New("empty one-time token")
		}
		return OneTimeResult{Failure: OneTimeFailureGenerate, Err: err}
	}

	if err := persist(ctx, token); err != nil {
		return OneTimeResult{Failure: OneTimeFailurePersist, Err: err, OwnerID: ownerID}
	}
	if err := deps.Store.Set(ctx, deps.Key(purpose, token), ownerID, ttl); err != nil {
		return OneTimeResult{Failure: OneTimeFailureStoreUnavailable, Err: err, OwnerID: ownerID}
	}

	return OneTimeResult{OwnerID: ownerID, Token: token}
}

// RunConsumeOneTime validates token against both the store record and the
// persisted copy, runs the hooks, and burns both copies.
//
// The store record is claimed with compare-and-set after Apply succeeds, so
// two concurrent consumes of the same token cannot both commit.
func RunConsumeOneTime(ctx context.Context, purpose, token string, hooks OneTimeHooks, deps OneTimeDeps) OneTimeResult {
	if token == "" || (deps.ValidToken != nil && !deps.ValidToken(token)) {
		return OneTimeResult{Failure: OneTimeFailureInvalid}
	}

	key := deps.Key(purpose, token)
	ownerID, err := deps.Store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return OneTimeResult{Failure: OneTimeFailureInvalid}
	case err != nil:
		return OneTimeResult{Failure: OneTimeFailureStoreUnavailable, Err: err}
	case ownerID == "":
		return OneTimeResult{Failure: OneTimeFailureInvalid}
	}

	persisted, err := hooks.Load(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return OneTimeResult{Failure: OneTimeFailureInvalid, OwnerID: ownerID}
		}
		return OneTimeResult{Failure: OneTimeFailurePersist, Err: err, OwnerID: ownerID}
	}
	if subtle.ConstantTimeCompare([]byte(persisted), []byte(token)) != 1 {
		return OneTimeResult{Failure: OneTimeFailureInvalid, OwnerID: ownerID}
	}

	if hooks.Apply != nil {
		if err := hooks.Apply(ctx); err != nil {
			return OneTimeResult{Failure: OneTimeFailureRejected, Err: err, OwnerID: ownerID}
		}
	}

	claimed, err := deps.Store.CompareAndSet(ctx, key, ownerID, "", deps.ClaimTTL)
	if err != nil {
		return OneTimeResult{Failure: OneTimeFailureStoreUnavailable, Err: err, OwnerID: ownerID}
	}
	if !claimed {
		return OneTimeResult{Failure: OneTimeFailureInvalid, OwnerID: ownerID}
	}

	if err := hooks.Commit(ctx); err != nil {
		return OneTimeResult{Failure: OneTimeFailurePersist, Err: err, OwnerID: ownerID}
	}

	return OneTimeResult{OwnerID: ownerID, Token: token}
}

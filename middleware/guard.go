package middleware

import (
	"context"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access-token claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*goAccount.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*goAccount.Claims)
	return claims, ok && claims != nil
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *goAccount.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// GuardOption configures Guard.
type GuardOption func(*guardConfig)

type guardConfig struct {
	ips *IPResolver
}

// WithIPResolver makes Guard derive the client address through r instead
// of the bare remote address.
func WithIPResolver(r *IPResolver) GuardOption {
	return func(c *guardConfig) { c.ips = r }
}

// Guard rejects requests without a currently valid access token.
//
// A ledger outage answers 503 rather than 401 so clients do not discard
// tokens that are still good.
func Guard(engine *goAccount.Engine, opts ...GuardOption) func(http.Handler) http.Handler {
	var cfg guardConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, goAccount.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "bearer token required")
				return
			}

			ctx := goAccount.WithClientIP(r.Context(), cfg.ips.ClientIP(r))
			claims, err := engine.Verify(ctx, token, goAccount.AccessToken)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

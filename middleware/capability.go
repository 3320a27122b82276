package middleware

import (
	"net/http"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/permission"
)

// RequireCapability must run after Guard. It answers 403 unless the caller's
// role grants level on partition.
func RequireCapability(engine *goAccount.Engine, level permission.Level, partition permission.Partition) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := engine.Authorize(r.Context(), claims, level, partition); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperuser must run after Guard. It answers 403 unless the caller's
// role is a superuser role.
func RequireSuperuser(engine *goAccount.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			super, err := engine.IsSuperuser(r.Context(), claims)
			if err != nil {
				WriteError(w, err)
				return
			}
			if !super {
				WriteError(w, goAccount.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

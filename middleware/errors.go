package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	goAccount "github.com/MrEthical07/goAccount"
)

type errorBody struct {
	Error string `json:"error"`
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goAccount.ErrStoreUnavailable),
		errors.Is(err, goAccount.ErrRevokeIncomplete),
		errors.Is(err, goAccount.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, goAccount.ErrLoginRateLimited),
		errors.Is(err, goAccount.ErrOneTimeRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goAccount.ErrTokenInvalid),
		errors.Is(err, goAccount.ErrTokenRevoked),
		errors.Is(err, goAccount.ErrTokenInvalidOrExpired),
		errors.Is(err, goAccount.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, goAccount.ErrAccountDisabled),
		errors.Is(err, goAccount.ErrAccountUnverified),
		errors.Is(err, goAccount.ErrPermissionDenied),
		errors.Is(err, goAccount.ErrSelfModification),
		errors.Is(err, goAccount.ErrSuperuserProtected):
		return http.StatusForbidden
	case errors.Is(err, goAccount.ErrUserNotFound),
		errors.Is(err, goAccount.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, goAccount.ErrAlreadyVerified),
		errors.Is(err, goAccount.ErrUserChanged):
		return http.StatusConflict
	case errors.Is(err, goAccount.ErrPasswordPolicy),
		errors.Is(err, goAccount.ErrPasswordReuse),
		errors.Is(err, goAccount.ErrPermissionNotFound),
		errors.Is(err, goAccount.ErrRoleTypeMismatch),
		errors.Is(err, goAccount.ErrLoginTypeUnsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body with the status from StatusFor.
// Server-side errors are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	writeJSONError(w, status, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

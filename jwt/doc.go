// Package jwt signs and verifies the access and refresh tokens handed to
// clients. Each token carries the account snapshot (user type, role, enabled,
// verified) at issuance time plus a unique jti that the session ledger pins.
//
// The package is pure: it never talks to the session store. Whether a token
// that verifies here is still the current one is decided by the caller.
package jwt

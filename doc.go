// Package goAccount is the authentication and authorization core of a
// multi-tenant account backend with an administrative platform and a
// consumer platform.
//
// The [Engine] issues signed access/refresh token pairs and pins the latest
// jti of each kind per user in an ephemeral ledger ([kv.Store]). A token
// verifies only while its jti is the one in the ledger, so issuing a new
// pair or calling [Engine.Revoke] invalidates every older token. Refresh
// rotation swaps the ledger record with compare-and-set: of several
// concurrent refreshes with the same token exactly one succeeds.
//
// One-time tokens (password reset, account verification) are recorded both
// in the ledger and on the user record and must match on both sides.
//
// Roles resolve to ordered permission sets; [permission.HasCapability]
// answers read/write questions per partition.
//
// # Architecture boundaries
//
// goAccount is the public surface: [Engine], [Builder], [Config] and value
// types. Flow orchestration, throttling and audit sinks live under internal/.
// Persistent stores are injected through [UserStore] and [RoleStore];
// store/postgres provides SQL implementations.
//
// # What this package must NOT do
//
//   - Retry ledger or record store calls. Failures are reported to the caller.
//   - Run background goroutines. Every operation runs on the caller's goroutine.
//   - Import store/postgres, middleware, or the metrics exporters.
package goAccount

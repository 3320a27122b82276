// Package kv is the ephemeral key/value store behind the session ledger and
// one-time tokens. Every record carries a TTL; nothing here is durable.
//
// # What this package must NOT do
//
//   - Retry failed calls. Errors are wrapped in ErrUnavailable and returned.
//   - Interpret values. Callers own the key layout and the value format.
package kv

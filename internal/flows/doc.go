// Package flows contains pure-function orchestrators for the session ledger
// and one-time tokens.
//
// Each flow (RunIssuePair, RunVerify, RunRotate, RunConsumeOneTime, ...)
// takes a typed dependency struct and returns a result carrying a failure
// kind that the root package maps onto its public errors.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAccount (to avoid import cycles).
//   - Retry store calls. A failure is classified and returned.
package flows

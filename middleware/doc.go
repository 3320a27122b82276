// Package middleware exposes net/http adapters over goAccount.Engine.
//
// # Guards
//
//   - [Guard] verifies the Bearer access token and stores its claims in the
//     request context.
//   - [RequireCapability] authorizes a level on a partition for the claims
//     placed by Guard.
//   - [RequireSuperuser] admits only actors whose role is a superuser role.
//
// [StatusFor] and [WriteError] map engine errors to HTTP responses so
// handlers built on top of the guards answer consistently.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// JWTs or talk to the ledger itself; every decision is delegated to the
// Engine.
package middleware

// Package internal holds random identifiers and opaque token helpers shared
// by the engine and its flows.
//
// Sub-packages:
//
//   - audit: event model and synchronous sinks
//   - flows: session and one-time token orchestration over kv.Store
//   - rate: Redis fixed-window limiter for login and one-time requests
package internal

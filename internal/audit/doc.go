// Package audit defines the audit event model and its sinks.
//
// Events are emitted synchronously by the Engine; there is no background
// dispatcher. Sinks that need buffering do it themselves (see [ChannelSink]).
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the Engine.
//   - Import goAccount or any sibling internal package.
package audit

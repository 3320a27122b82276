// Package permission models roles and permissions and answers capability
// questions against them.
//
// Permission names combine a level prefix ("r" or "rw") with a partition
// (Admin, Partner, Youth, Organisation). [HasCapability] is the only place
// that interprets those names; callers never compare strings themselves.
//
// # Architecture boundaries
//
// The [Resolver] reads through a [Store]. It may cache resolved roles for a
// configured TTL; with a zero TTL every call reaches the store.
//
// # What this package must NOT do
//
//   - Import goAccount, jwt, or kv.
//   - Treat any role name specially. Superuser status comes from Role.IsSuperuser.
package permission

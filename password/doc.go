// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are accepted by [Hasher.Verify] and always
// reported by [Hasher.NeedsRehash], so callers can upgrade them after the next
// successful login.
//
// Password policy (minimum length and the like) is enforced by the Engine.
package password

// Package postgres persists goAccount users and the role catalog in
// PostgreSQL through database/sql.
//
// Open the handle with the pgx driver:
//
//	db, err := sql.Open("pgx", os.Getenv("DATABASE_URL"))
//
// Each platform keeps its own user table. [Migrate] creates the schema and
// [Seed] inserts the default permission catalog and roles once.
//
// Lookups wrap goAccount.ErrUserNotFound or permission.ErrRoleNotFound for
// missing rows. Every other database failure wraps
// goAccount.ErrStoreUnavailable so the engine fails closed.
package postgres

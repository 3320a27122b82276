package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

// Default user tables.
const (
	AdminUsersTable    = "admin_users"
	ConsumerUsersTable = "consumer_users"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdent(s string) bool {
	return identRe.MatchString(s)
}

// ident quotes name for interpolation into SQL.
func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func userTableDDL(table string) string {
	t := ident(table)
	return `CREATE TABLE IF NOT EXISTS ` + t + ` (
  id                 TEXT PRIMARY KEY,
  email              TEXT NOT NULL,
  user_type          TEXT NOT NULL,
  role_id            TEXT NOT NULL REFERENCES roles (id),
  password_hash      TEXT NOT NULL DEFAULT '',
  enabled            BOOLEAN NOT NULL DEFAULT TRUE,
  verified           BOOLEAN NOT NULL DEFAULT FALSE,
  login_type         TEXT NOT NULL DEFAULT '',
  reset_token        TEXT NOT NULL DEFAULT '',
  verification_token TEXT NOT NULL DEFAULT '',
  last_login         TIMESTAMPTZ,
  last_refresh       TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS ` + ident("uq_"+table+"_email") + ` ON ` + t + ` (lower(email));`
}

const catalogDDL = `
CREATE TABLE IF NOT EXISTS permissions (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL UNIQUE,
  can_read    BOOLEAN NOT NULL,
  can_write   BOOLEAN NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS roles (
  id             TEXT PRIMARY KEY,
  name           TEXT NOT NULL UNIQUE,
  role_type      TEXT NOT NULL,
  system_default BOOLEAN NOT NULL DEFAULT FALSE,
  is_superuser   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS role_permissions (
  role_id       TEXT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
  permission_id TEXT NOT NULL REFERENCES permissions (id),
  position      INT NOT NULL,
  PRIMARY KEY (role_id, permission_id)
);`

// Migrate creates the catalog tables and one user table per name in tables.
func Migrate(ctx context.Context, db *sql.DB, tables ...string) error {
	for _, table := range tables {
		if !validIdent(table) {
			return fmt.Errorf("migrate: invalid table name %q", table)
		}
	}
	if _, err := db.ExecContext(ctx, catalogDDL); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, userTableDDL(table)); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

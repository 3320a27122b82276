package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/permission"
	"github.com/oklog/ulid/v2"
)

// NewID returns a ULID string for now.
func NewID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now()
	}
	id, err := ulid.New(ulid.Timestamp(now.UTC()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Seed inserts the default permission catalog and roles when the roles table
// is empty. It reports whether anything was written.
func Seed(ctx context.Context, db *sql.DB) (bool, error) {
	now := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM roles`).Scan(&count); err != nil {
		return false, unavailable("count roles", err)
	}
	if count > 0 {
		return false, nil
	}

	ids := make(map[string]string)
	for _, p := range permission.DefaultPermissions() {
		id, err := NewID(now)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permissions (id, name, can_read, can_write, description) VALUES ($1, $2, $3, $4, $5)`,
			id, p.Name, p.Read, p.Write, p.Description,
		); err != nil {
			return false, fmt.Errorf("seed permission %s: %w", p.Name, err)
		}
		ids[p.Name] = id
	}

	for _, r := range permission.DefaultRoles() {
		roleID, err := NewID(now)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roles (id, name, role_type, system_default, is_superuser) VALUES ($1, $2, $3, $4, $5)`,
			roleID, r.Name, r.RoleType, r.SystemDefault, r.IsSuperuser,
		); err != nil {
			return false, fmt.Errorf("seed role %s: %w", r.Name, err)
		}
		for i, name := range r.Permissions {
			pid, ok := ids[name]
			if !ok {
				return false, fmt.Errorf("seed role %s: %w: %s", r.Name, permission.ErrPermissionNotFound, name)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO role_permissions (role_id, permission_id, position) VALUES ($1, $2, $3)`,
				roleID, pid, i,
			); err != nil {
				return false, fmt.Errorf("seed role %s: %w", r.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, unavailable("commit", err)
	}
	return true, nil
}

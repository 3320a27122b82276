package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/permission"
)

// RoleStore is a permission.Store over the roles, permissions, and
// role_permissions tables. Role permissions keep their stored position.
type RoleStore struct {
	db *sql.DB
}

var _ permission.Store = (*RoleStore)(nil)

// NewRoleStore returns a catalog store. The caller owns db.
func NewRoleStore(db *sql.DB) (*RoleStore, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	return &RoleStore{db: db}, nil
}

const (
	selectRole            = `SELECT id, name, role_type, system_default, is_superuser FROM roles`
	selectRolePermissions = `SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY position`
	selectPermission      = `SELECT id, name, can_read, can_write, description FROM permissions`
)

// FindRoleByName returns the role called name with its ordered permission ids.
func (s *RoleStore) FindRoleByName(ctx context.Context, name string) (permission.Role, error) {
	return s.findRole(ctx, selectRole+` WHERE name = $1`, name)
}

// FindRoleByID returns the role with id and its ordered permission ids.
func (s *RoleStore) FindRoleByID(ctx context.Context, id string) (permission.Role, error) {
	return s.findRole(ctx, selectRole+` WHERE id = $1`, id)
}

func (s *RoleStore) findRole(ctx context.Context, query, key string) (permission.Role, error) {
	var r permission.Role
	err := s.db.QueryRowContext(ctx, query, key).Scan(&r.ID, &r.Name, &r.RoleType, &r.SystemDefault, &r.IsSuperuser)
	if errors.Is(err, sql.ErrNoRows) {
		return permission.Role{}, fmt.Errorf("%w: %s", permission.ErrRoleNotFound, key)
	}
	if err != nil {
		return permission.Role{}, unavailable("query role", err)
	}

	rows, err := s.db.QueryContext(ctx, selectRolePermissions, r.ID)
	if err != nil {
		return permission.Role{}, unavailable("query role permissions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return permission.Role{}, unavailable("scan role permission", err)
		}
		r.Permissions = append(r.Permissions, id)
	}
	if err := rows.Err(); err != nil {
		return permission.Role{}, unavailable("iterate role permissions", err)
	}
	return r, nil
}

// PermissionsByIDs returns the permissions with ids, in order.
func (s *RoleStore) PermissionsByIDs(ctx context.Context, ids []string) ([]permission.Permission, error) {
	return s.permissionsBy(ctx, "id", ids, func(p permission.Permission) string { return p.ID })
}

// PermissionsByNames returns the named permissions, in order.
func (s *RoleStore) PermissionsByNames(ctx context.Context, names []string) ([]permission.Permission, error) {
	return s.permissionsBy(ctx, "name", names, func(p permission.Permission) string { return p.Name })
}

// permissionsBy loads permissions whose column matches keys and returns them
// in key order.
func (s *RoleStore) permissionsBy(ctx context.Context, column string, keys []string, keyOf func(permission.Permission) string) ([]permission.Permission, error) {
	if len(keys) == 0 {
		return []permission.Permission{}, nil
	}

	query, args := inClause(selectPermission+` WHERE `+column, keys)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query permissions", err)
	}
	defer rows.Close()

	found := make(map[string]permission.Permission, len(keys))
	for rows.Next() {
		var p permission.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Read, &p.Write, &p.Description); err != nil {
			return nil, unavailable("scan permission", err)
		}
		found[keyOf(p)] = p
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate permissions", err)
	}

	out := make([]permission.Permission, 0, len(keys))
	for _, k := range keys {
		p, ok := found[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", permission.ErrPermissionNotFound, k)
		}
		out = append(out, p)
	}
	return out, nil
}

// SetRolePermissions replaces the role's permission list in one transaction.
func (s *RoleStore) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM roles WHERE id = $1 FOR UPDATE`, roleID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", permission.ErrRoleNotFound, roleID)
	}
	if err != nil {
		return unavailable("lock role", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return unavailable("clear role permissions", err)
	}
	for i, pid := range permissionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id, position) VALUES ($1, $2, $3)`,
			roleID, pid, i,
		); err != nil {
			return unavailable("insert role permission", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// ListRoles returns every role ordered by name, each with its ordered
// permission ids.
func (s *RoleStore) ListRoles(ctx context.Context) ([]permission.Role, error) {
	rows, err := s.db.QueryContext(ctx, selectRole+` ORDER BY name`)
	if err != nil {
		return nil, unavailable("list roles", err)
	}
	defer rows.Close()

	var roles []permission.Role
	index := make(map[string]int)
	for rows.Next() {
		var r permission.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.RoleType, &r.SystemDefault, &r.IsSuperuser); err != nil {
			return nil, unavailable("scan role", err)
		}
		index[r.ID] = len(roles)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate roles", err)
	}
	if len(roles) == 0 {
		return []permission.Role{}, nil
	}

	links, err := s.db.QueryContext(ctx, `SELECT role_id, permission_id FROM role_permissions ORDER BY role_id, position`)
	if err != nil {
		return nil, unavailable("list role permissions", err)
	}
	defer links.Close()
	for links.Next() {
		var roleID, permID string
		if err := links.Scan(&roleID, &permID); err != nil {
			return nil, unavailable("scan role permission", err)
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, permID)
		}
	}
	if err := links.Err(); err != nil {
		return nil, unavailable("iterate role permissions", err)
	}
	return roles, nil
}

// ListPermissions returns every permission ordered by name.
func (s *RoleStore) ListPermissions(ctx context.Context) ([]permission.Permission, error) {
	rows, err := s.db.QueryContext(ctx, selectPermission+` ORDER BY name`)
	if err != nil {
		return nil, unavailable("list permissions", err)
	}
	defer rows.Close()

	out := []permission.Permission{}
	for rows.Next() {
		var p permission.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Read, &p.Write, &p.Description); err != nil {
			return nil, unavailable("scan permission", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate permissions", err)
	}
	return out, nil
}

// inClause appends "IN ($1, ..., $n)" for keys.
func inClause(prefix string, keys []string) (string, []any) {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" IN (")
	args := make([]any, len(keys))
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(i + 1))
		args[i] = k
	}
	b.WriteByte(')')
	return b.String(), args
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", goAccount.ErrStoreUnavailable, op, err)
}

package permission

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Ids are the names themselves, which
// keeps fixtures readable.
type MemoryStore struct {
	mu          sync.RWMutex
	roles       map[string]Role
	permissions map[string]Permission
}

// NewMemoryStore returns a store holding perms and roles. Role permission
// references and missing ids are filled in from names.
func NewMemoryStore(perms []Permission, roles []Role) *MemoryStore {
	m := &MemoryStore{
		roles:       make(map[string]Role, len(roles)),
		permissions: make(map[string]Permission, len(perms)),
	}
	for _, p := range perms {
		if p.ID == "" {
			p.ID = p.Name
		}
		m.permissions[p.ID] = p
	}
	for _, r := range roles {
		if r.ID == "" {
			r.ID = r.Name
		}
		r.Permissions = append([]string(nil), r.Permissions...)
		m.roles[r.ID] = r
	}
	return m
}

// NewDefaultMemoryStore returns a MemoryStore seeded with the default catalog.
func NewDefaultMemoryStore() *MemoryStore {
	return NewMemoryStore(DefaultPermissions(), DefaultRoles())
}

// FindRoleByName returns the role called name.
func (m *MemoryStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.roles {
		if r.Name == name {
			return cloneRole(r), nil
		}
	}
	return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
}

// FindRoleByID returns the role with id.
func (m *MemoryStore) FindRoleByID(ctx context.Context, id string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	return cloneRole(r), nil
}

// PermissionsByIDs returns the permissions with ids, in order.
func (m *MemoryStore) PermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := m.permissions[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPermissionNotFound, id)
		}
		out = append(out, p)
	}
	return out, nil
}

// PermissionsByNames returns the named permissions, in order.
func (m *MemoryStore) PermissionsByNames(ctx context.Context, names []string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0, len(names))
	for _, name := range names {
		found := false
		for _, p := range m.permissions {
			if p.Name == name {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrPermissionNotFound, name)
		}
	}
	return out, nil
}

// SetRolePermissions replaces the permission ids of roleID.
func (m *MemoryStore) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
	}
	r.Permissions = append([]string(nil), permissionIDs...)
	m.roles[roleID] = r
	return nil
}

// ListRoles returns every role ordered by name.
func (m *MemoryStore) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListPermissions returns every permission ordered by name.
func (m *MemoryStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneRole(r Role) Role {
	r.Permissions = append([]string(nil), r.Permissions...)
	return r
}

package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrRoleNotFound is returned when a role name or id is unknown.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionNotFound is returned when a role references a missing permission
	// or an update names an unknown one.
	ErrPermissionNotFound = errors.New("permission not found")
)

// Store is the persistent role/permission catalog.
type Store interface {
	FindRoleByName(ctx context.Context, name string) (Role, error)
	FindRoleByID(ctx context.Context, id string) (Role, error)
	// PermissionsByIDs returns permissions in the order of ids. A missing id
	// yields ErrPermissionNotFound.
	PermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
	// PermissionsByNames returns permissions in the order of names. A missing
	// name yields ErrPermissionNotFound.
	PermissionsByNames(ctx context.Context, names []string) ([]Permission, error)
	SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	// ListRoles returns every role ordered by name.
	ListRoles(ctx context.Context) ([]Role, error)
	// ListPermissions returns every permission ordered by name.
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// Resolved is a role together with its resolved permission set.
type Resolved struct {
	Role        Role
	Permissions Set
}

type cacheEntry struct {
	resolved  Resolved
	expiresAt time.Time
}

// Resolver turns role names into permission sets.
//
// With a positive TTL, results are cached per role name and served until
// the TTL elapses or Invalidate is called. A zero TTL disables caching.
type Resolver struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver returns a Resolver over store.
func NewResolver(store Store, ttl time.Duration, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Resolver{
		store: store,
		ttl:   ttl,
		now:   now,
		cache: make(map[string]cacheEntry),
	}
}

// Resolve loads roleName and its permissions.
func (r *Resolver) Resolve(ctx context.Context, roleName string) (Resolved, error) {
	if r.ttl > 0 {
		r.mu.RLock()
		e, ok := r.cache[roleName]
		r.mu.RUnlock()
		if ok && r.now().Before(e.expiresAt) {
			return e.resolved, nil
		}
	}

	role, err := r.store.FindRoleByName(ctx, roleName)
	if err != nil {
		return Resolved{}, err
	}
	resolved, err := r.expand(ctx, role)
	if err != nil {
		return Resolved{}, err
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[roleName] = cacheEntry{resolved: resolved, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return resolved, nil
}

// PermissionsForRole returns the ordered permission set of roleName.
func (r *Resolver) PermissionsForRole(ctx context.Context, roleName string) (Set, error) {
	resolved, err := r.Resolve(ctx, roleName)
	if err != nil {
		return Set{}, err
	}
	return resolved.Permissions, nil
}

// RoleByID loads a role by id. It is not cached.
func (r *Resolver) RoleByID(ctx context.Context, id string) (Role, error) {
	return r.store.FindRoleByID(ctx, id)
}

// ListRoles returns the whole role catalog. It is not cached.
func (r *Resolver) ListRoles(ctx context.Context) ([]Role, error) {
	return r.store.ListRoles(ctx)
}

// ListPermissions returns every known permission. It is not cached.
func (r *Resolver) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.store.ListPermissions(ctx)
}

// SetRolePermissions replaces the permissions of the role with id roleID by
// the named permissions and drops the cached entry for that role.
func (r *Resolver) SetRolePermissions(ctx context.Context, roleID string, names []string) (Resolved, error) {
	role, err := r.store.FindRoleByID(ctx, roleID)
	if err != nil {
		return Resolved{}, err
	}
	perms, err := r.store.PermissionsByNames(ctx, names)
	if err != nil {
		return Resolved{}, err
	}
	ids := make([]string, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	if err := r.store.SetRolePermissions(ctx, role.ID, ids); err != nil {
		return Resolved{}, err
	}
	r.Invalidate(role.Name)

	role.Permissions = ids
	return Resolved{Role: role, Permissions: namesOf(perms)}, nil
}

// Invalidate drops the cached entry for roleName.
func (r *Resolver) Invalidate(roleName string) {
	r.mu.Lock()
	delete(r.cache, roleName)
	r.mu.Unlock()
}

// InvalidateAll empties the cache.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.mu.Unlock()
}

func (r *Resolver) expand(ctx context.Context, role Role) (Resolved, error) {
	perms, err := r.store.PermissionsByIDs(ctx, role.Permissions)
	if err != nil {
		return Resolved{}, fmt.Errorf("role %q: %w", role.Name, err)
	}
	return Resolved{Role: role, Permissions: namesOf(perms)}, nil
}

func namesOf(perms []Permission) Set {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name
	}
	return NewSet(names...)
}

package goAccount

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goAccount/permission"
)

// PermissionsForRole returns the ordered permission set of roleName.
// Unknown roles fail with ErrRoleNotFound.
func (e *Engine) PermissionsForRole(ctx context.Context, roleName string) (permission.Set, error) {
	if !e.ready() {
		return permission.Set{}, ErrEngineNotReady
	}
	return e.roles.PermissionsForRole(ctx, roleName)
}

// Authorize fails with ErrPermissionDenied unless the role in claims grants
// level on partition.
func (e *Engine) Authorize(ctx context.Context, claims *Claims, level permission.Level, partition permission.Partition) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if claims == nil {
		return ErrPermissionDenied
	}
	set, err := e.roles.PermissionsForRole(ctx, claims.UserRole)
	if err != nil {
		return err
	}
	if !permission.HasCapability(set, level, partition) {
		return e.deny(ctx, claims, string(level)+string(partition))
	}
	return nil
}

// CanAccessUser authorizes level access to users of targetUserType.
func (e *Engine) CanAccessUser(ctx context.Context, claims *Claims, targetUserType string, level permission.Level) error {
	partition, ok := permission.PartitionForUserType(targetUserType)
	if !ok {
		return e.deny(ctx, claims, "userType:"+targetUserType)
	}
	return e.Authorize(ctx, claims, level, partition)
}

// UpdateRolePermissions replaces the permissions of roleID. Only superusers
// may call it; unknown permission names fail with ErrPermissionNotFound.
func (e *Engine) UpdateRolePermissions(ctx context.Context, actor *Claims, roleID string, names []string) (permission.Resolved, error) {
	if !e.ready() {
		return permission.Resolved{}, ErrEngineNotReady
	}
	if err := e.requireSuperuser(ctx, actor); err != nil {
		return permission.Resolved{}, err
	}

	resolved, err := e.roles.SetRolePermissions(ctx, roleID, names)
	if err != nil {
		e.emitAudit(ctx, auditRecord{eventType: auditEventRolePermissionsUpdate, actorID: actor.UserID(), err: err})
		return permission.Resolved{}, err
	}

	e.metricInc(MetricRolePermissionsUpdated)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRolePermissionsUpdate,
		actorID:   actor.UserID(),
		metadata: func() map[string]string {
			return map[string]string{"role": resolved.Role.Name}
		},
	})
	return resolved, nil
}

// ChangeUserRole assigns roleID to targetUserID and revokes the target's
// sessions so the new role applies on next login. Only superusers may call
// it, and the role type must equal the target's user type.
func (e *Engine) ChangeUserRole(ctx context.Context, actor *Claims, targetUserID, roleID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.requireSuperuser(ctx, actor); err != nil {
		return err
	}

	target, platform, err := e.findUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	role, err := e.roles.RoleByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.RoleType != target.UserType {
		err := fmt.Errorf("%w: role %s is for %s users", ErrRoleTypeMismatch, role.Name, role.RoleType)
		e.emitAudit(ctx, auditRecord{eventType: auditEventRoleChange, userID: target.ID, actorID: actor.UserID(), platform: platform, err: err})
		return err
	}

	if err := e.users[platform].SetRole(ctx, target.ID, role.ID); err != nil {
		return err
	}

	e.metricInc(MetricRoleChanged)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRoleChange,
		userID:    target.ID,
		actorID:   actor.UserID(),
		platform:  platform,
		metadata: func() map[string]string {
			return map[string]string{"role": role.Name}
		},
	})
	return e.Revoke(ctx, target.ID)
}

// ListRoles returns every role in the catalog. Only superusers may call it.
func (e *Engine) ListRoles(ctx context.Context, actor *Claims) ([]permission.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if err := e.requireSuperuser(ctx, actor); err != nil {
		return nil, err
	}
	return e.roles.ListRoles(ctx)
}

// ListPermissions returns every permission in the catalog. Only superusers
// may call it.
func (e *Engine) ListPermissions(ctx context.Context, actor *Claims) ([]permission.Permission, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if err := e.requireSuperuser(ctx, actor); err != nil {
		return nil, err
	}
	return e.roles.ListPermissions(ctx)
}

// Role returns the role with roleID and its permission set. Only superusers
// may call it.
func (e *Engine) Role(ctx context.Context, actor *Claims, roleID string) (permission.Resolved, error) {
	if !e.ready() {
		return permission.Resolved{}, ErrEngineNotReady
	}
	if err := e.requireSuperuser(ctx, actor); err != nil {
		return permission.Resolved{}, err
	}
	role, err := e.roles.RoleByID(ctx, roleID)
	if err != nil {
		return permission.Resolved{}, err
	}
	set, err := e.roles.PermissionsForRole(ctx, role.Name)
	if err != nil {
		return permission.Resolved{}, err
	}
	return permission.Resolved{Role: role, Permissions: set}, nil
}

// ResetUserPassword sets newPassword on targetUserID without the old one and
// revokes the target's sessions. Only superusers may call it, and never on
// their own account; ChangePassword covers that.
func (e *Engine) ResetUserPassword(ctx context.Context, actor *Claims, targetUserID, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.requireSuperuser(ctx, actor); err != nil {
		return err
	}
	if actor.UserID() == targetUserID {
		e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordChange, userID: targetUserID, actorID: actor.UserID(), err: ErrSelfModification})
		return ErrSelfModification
	}

	target, platform, err := e.findUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	if err := e.users[platform].SetPasswordHash(ctx, target.ID, hash); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventPasswordChange,
		userID:    target.ID,
		actorID:   actor.UserID(),
		platform:  platform,
		metadata: func() map[string]string {
			return map[string]string{"by": "superuser"}
		},
	})
	return e.Revoke(ctx, target.ID)
}

// IsSuperuser reports whether the role in claims is a superuser role.
func (e *Engine) IsSuperuser(ctx context.Context, claims *Claims) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	if claims == nil {
		return false, nil
	}
	resolved, err := e.roles.Resolve(ctx, claims.UserRole)
	if err != nil {
		return false, err
	}
	return resolved.Role.IsSuperuser, nil
}

func (e *Engine) requireSuperuser(ctx context.Context, actor *Claims) error {
	if actor == nil {
		return ErrPermissionDenied
	}
	super, err := e.IsSuperuser(ctx, actor)
	if err != nil {
		return err
	}
	if !super {
		return e.deny(ctx, actor, "superuser")
	}
	return nil
}

func (e *Engine) deny(ctx context.Context, claims *Claims, required string) error {
	e.metricInc(MetricPermissionDenied)
	var userID string
	if claims != nil {
		userID = claims.UserID()
	}
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventPermissionDenied,
		actorID:   userID,
		err:       ErrPermissionDenied,
		metadata: func() map[string]string {
			return map[string]string{"required": required}
		},
	})
	return ErrPermissionDenied
}

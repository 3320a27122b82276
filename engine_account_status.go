package goAccount

import (
	"context"

	"github.com/MrEthical07/goAccount/permission"
)

// SetUserEnabled enables or disables targetUserID.
//
// The actor's role must hold actAndDeactUser. Actors cannot change their own
// status or that of a superuser. Disabling also revokes the target's
// sessions.
func (e *Engine) SetUserEnabled(ctx context.Context, actor *Claims, targetUserID string, enabled bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if actor == nil {
		return ErrPermissionDenied
	}

	set, err := e.roles.PermissionsForRole(ctx, actor.UserRole)
	if err != nil {
		return err
	}
	if !set.Has(permission.ActAndDeactUser) {
		return e.deny(ctx, actor, permission.ActAndDeactUser)
	}
	if actor.UserID() == targetUserID {
		e.emitAudit(ctx, auditRecord{eventType: auditEventAccountStatusChange, userID: targetUserID, actorID: actor.UserID(), err: ErrSelfModification})
		return ErrSelfModification
	}

	target, platform, err := e.findUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	role, err := e.roles.RoleByID(ctx, target.RoleID)
	if err != nil {
		return err
	}
	if role.IsSuperuser {
		e.emitAudit(ctx, auditRecord{eventType: auditEventAccountStatusChange, userID: target.ID, actorID: actor.UserID(), platform: platform, err: ErrSuperuserProtected})
		return ErrSuperuserProtected
	}

	if err := e.users[platform].SetEnabled(ctx, target.ID, enabled); err != nil {
		return err
	}

	status := "enabled"
	if enabled {
		e.metricInc(MetricAccountEnabled)
	} else {
		status = "disabled"
		e.metricInc(MetricAccountDisabled)
	}
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountStatusChange,
		userID:    target.ID,
		actorID:   actor.UserID(),
		platform:  platform,
		metadata: func() map[string]string {
			return map[string]string{"status": status}
		},
	})

	if !enabled {
		return e.Revoke(ctx, target.ID)
	}
	return nil
}

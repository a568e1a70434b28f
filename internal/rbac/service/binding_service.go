package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
	"accessd/pkg/platform/sentinel"
	"accessd/pkg/requestcontext"
)

// GrantPermission binds a permission to a role. Granting an already-bound
// permission is an idempotent no-op: the role is returned unchanged and no
// audit entry is written.
func (s *Service) GrantPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error) {
	return s.mutateBinding(ctx, roleID, permID, func(r *models.Role) models.AuditAction {
		return models.AuditActionGrant
	})
}

// RevokePermission unbinds a permission from a role. Revoking an unbound
// permission is an idempotent no-op.
func (s *Service) RevokePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error) {
	return s.mutateBinding(ctx, roleID, permID, func(r *models.Role) models.AuditAction {
		return models.AuditActionRevoke
	})
}

// TogglePermission grants the permission when absent and revokes it when
// present. The second return value reports whether the permission is bound
// after the toggle. A toggle always changes state, so it always audits.
func (s *Service) TogglePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error) {
	role, _, err := s.mutateBinding(ctx, roleID, permID, func(r *models.Role) models.AuditAction {
		if r.HasPermission(permID) {
			return models.AuditActionRevoke
		}
		return models.AuditActionGrant
	})
	if err != nil {
		return nil, false, err
	}
	return role, role.HasPermission(permID), nil
}

// mutateBinding runs one binding mutation through the store's Execute
// pipeline. decide picks the action from the role's current state, inside the
// role lock; the audit entry commits atomically with the change.
func (s *Service) mutateBinding(
	ctx context.Context,
	roleID id.RoleID,
	permID id.PermissionID,
	decide func(*models.Role) models.AuditAction,
) (*models.Role, bool, error) {
	ctx, span := s.tracer.Start(ctx, "rbac.mutate_binding", trace.WithAttributes(
		attribute.String("role_id", roleID.String()),
		attribute.String("permission_id", string(permID)),
	))
	defer span.End()

	start := time.Now()
	if _, err := s.catalog.Get(permID); err != nil {
		return nil, false, dErrors.Newf(dErrors.CodeNotFound, "permission %q is not registered", permID)
	}

	var entry models.AuditEntry
	role, changed, err := s.roles.Execute(ctx, roleID,
		func(r *models.Role) error { return r.CanMutateBindings() },
		func(r *models.Role) bool {
			now := requestcontext.Now(ctx)
			if decide(r) == models.AuditActionGrant {
				return r.ApplyGrant(permID, now)
			}
			return r.ApplyRevoke(permID, now)
		},
		func(txCtx context.Context, updated *models.Role) error {
			entry = models.AuditEntry{
				ID:           uuid.New(),
				RoleID:       updated.ID,
				PermissionID: permID,
				Action:       actionFor(updated, permID),
				Actor:        s.actor(txCtx),
				Timestamp:    requestcontext.Now(txCtx),
			}
			if err := s.auditLog.Append(txCtx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
			}
			return nil
		},
	)
	if err != nil {
		return nil, false, s.translateBindingError(err)
	}

	if !changed {
		if s.metrics != nil {
			s.metrics.BindingNoOps.Inc()
		}
		return role, false, nil
	}

	s.publishRole(ctx, role)
	s.streamEntry(ctx, entry)
	if s.metrics != nil {
		if entry.Action == models.AuditActionGrant {
			s.metrics.BindingsGranted.Inc()
		} else {
			s.metrics.BindingsRevoked.Inc()
		}
	}
	s.logAudit(ctx, "binding_"+string(entry.Action),
		"role_id", role.ID, "role_name", role.Name,
		"permission_id", permID, "actor", s.actor(ctx))
	s.observeMutation(start)
	return role, true, nil
}

// actionFor derives the committed action from the post-mutation state: the
// commit callback only runs after a real change, so presence means grant.
func actionFor(updated *models.Role, permID id.PermissionID) models.AuditAction {
	if updated.HasPermission(permID) {
		return models.AuditActionGrant
	}
	return models.AuditActionRevoke
}

func (s *Service) translateBindingError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		// System-role immutability surfaces as a conflict to the API. The
		// rejection is counted, not audited: the trail records state changes.
		if s.metrics != nil {
			s.metrics.SystemRoleRejections.Inc()
		}
		return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mutate role bindings")
}

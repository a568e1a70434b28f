package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
	"accessd/pkg/platform/sentinel"
	"accessd/pkg/requestcontext"
)

// systemRoleSeed describes a role provisioned at boot. System roles are
// created directly against the store: they never pass through the binding
// engine, whose validation would reject mutations of a system role.
type systemRoleSeed struct {
	name        string
	displayName string
	description string
	permissions []id.PermissionID
}

func (s *Service) systemRoleSeeds() []systemRoleSeed {
	allPerms := make([]id.PermissionID, 0, s.catalog.Len())
	for _, p := range s.catalog.List("") {
		allPerms = append(allPerms, p.ID)
	}
	return []systemRoleSeed{
		{
			name:        "super-admin",
			displayName: "Super Administrator",
			description: "Full access to every platform capability",
			permissions: allPerms,
		},
		{
			name:        "auditor",
			displayName: "Compliance Auditor",
			description: "Read-only access to the audit trail",
			permissions: []id.PermissionID{"perm-audit-view"},
		},
	}
}

// EnsureSystemRoles provisions the built-in roles if they are missing.
// Idempotent: an existing role of the same name is left untouched, so a
// restart never resets system-role state.
func (s *Service) EnsureSystemRoles(ctx context.Context) error {
	for _, seed := range s.systemRoleSeeds() {
		if _, err := s.roles.FindByName(ctx, seed.name); err == nil {
			continue
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check system role")
		}

		role, err := models.NewRole(id.RoleID(uuid.New()), seed.name, seed.displayName, seed.description, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		role.IsSystem = true
		for _, permID := range seed.permissions {
			if _, err := s.catalog.Get(permID); err != nil {
				return dErrors.Newf(dErrors.CodeInternal, "system role %q references unregistered permission %q", seed.name, permID)
			}
			role.Permissions[permID] = struct{}{}
		}

		if err := s.roles.CreateIfNameAvailable(ctx, role); err != nil {
			// A sibling replica may have seeded it between the check and here.
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed system role")
		}
		s.logAudit(ctx, "system_role_seeded", "role_name", seed.name)
	}
	return nil
}

// WarmSnapshot rebuilds the authorization snapshot from the full role set.
// Called at boot after seeding, and safe to call again at any time.
func (s *Service) WarmSnapshot(ctx context.Context) error {
	roles, err := s.roles.List(ctx, "")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles for snapshot")
	}
	s.snapshot.Rebuild(roles, s.catalog)
	if s.metrics != nil {
		s.metrics.SnapshotRolesTracked.Set(float64(len(roles)))
	}
	return nil
}

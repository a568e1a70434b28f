package service

import (
	"time"

	"github.com/google/uuid"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
)

// TestAuthorizationChecks verifies snapshot-backed permission and role
// resolution.
func (s *ServiceSuite) TestAuthorizationChecks() {
	nurse := s.mustCreateRole("nurse")
	clerk := s.mustCreateRole("clerk")
	_, _, err := s.service.GrantPermission(s.ctx, nurse.ID, "perm-record-read")
	s.Require().NoError(err)
	_, _, err = s.service.GrantPermission(s.ctx, clerk.ID, "perm-appointment-read")
	s.Require().NoError(err)

	s.Run("hasPermission unions across held roles", func() {
		held := []id.RoleID{nurse.ID, clerk.ID}
		s.True(s.service.HasPermission(s.ctx, held, "record.read"))
		s.True(s.service.HasPermission(s.ctx, held, "appointment.read"))
		s.False(s.service.HasPermission(s.ctx, held, "record.write"))
	})

	s.Run("unknown role IDs and names deny", func() {
		s.False(s.service.HasPermission(s.ctx, []id.RoleID{id.RoleID(uuid.New())}, "record.read"))
		s.False(s.service.HasPermission(s.ctx, []id.RoleID{nurse.ID}, "no.such.permission"))
		s.False(s.service.HasPermission(s.ctx, nil, "record.read"))
	})

	s.Run("revoke is visible to checks immediately after return", func() {
		_, _, err := s.service.RevokePermission(s.ctx, nurse.ID, "perm-record-read")
		s.Require().NoError(err)
		s.False(s.service.HasPermission(s.ctx, []id.RoleID{nurse.ID}, "record.read"))
	})

	s.Run("role name checks", func() {
		held := []id.RoleID{nurse.ID, clerk.ID}
		s.True(s.service.HasAnyRole(s.ctx, held, []string{"admin", "nurse"}))
		s.False(s.service.HasAnyRole(s.ctx, []id.RoleID{clerk.ID}, []string{"nurse"}))
		s.True(s.service.HasAllRoles(s.ctx, held, []string{"nurse", "clerk"}))
		s.False(s.service.HasAllRoles(s.ctx, []id.RoleID{nurse.ID}, []string{"nurse", "clerk"}))
	})
}

// TestAuditTrailQuery verifies filter validation and ordering through the
// service.
func (s *ServiceSuite) TestAuditTrailQuery() {
	role := s.mustCreateRole("trail")
	for _, permID := range []id.PermissionID{"perm-record-read", "perm-record-write", "perm-audit-view"} {
		_, _, err := s.service.GrantPermission(s.ctx, role.ID, permID)
		s.Require().NoError(err)
	}

	s.Run("returns entries ascending by timestamp", func() {
		entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: role.ID})
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		for i := 1; i < len(entries); i++ {
			s.False(entries[i].Timestamp.Before(entries[i-1].Timestamp))
		}
	})

	s.Run("rejects inverted time range", func() {
		now := time.Now()
		_, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{From: now, To: now.Add(-time.Hour)})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestSystemRoleSeeding verifies boot provisioning of built-in roles.
func (s *ServiceSuite) TestSystemRoleSeeding() {
	s.Require().NoError(s.service.EnsureSystemRoles(s.ctx))

	s.Run("super-admin holds every registered permission", func() {
		admin, err := s.service.GetRoleByName(s.ctx, "super-admin")
		s.Require().NoError(err)
		s.True(admin.IsSystem)
		s.Equal(s.catalog.Len(), len(admin.Permissions))
	})

	s.Run("auditor holds only the audit permission", func() {
		auditor, err := s.service.GetRoleByName(s.ctx, "auditor")
		s.Require().NoError(err)
		s.True(auditor.IsSystem)
		s.Equal([]id.PermissionID{"perm-audit-view"}, auditor.PermissionIDs())
	})

	s.Run("seeding is idempotent", func() {
		admin, err := s.service.GetRoleByName(s.ctx, "super-admin")
		s.Require().NoError(err)

		s.Require().NoError(s.service.EnsureSystemRoles(s.ctx))

		again, err := s.service.GetRoleByName(s.ctx, "super-admin")
		s.Require().NoError(err)
		s.Equal(admin.ID, again.ID)
		s.Equal(admin.Version, again.Version)
	})

	s.Run("seeded roles resolve after snapshot warm-up", func() {
		s.Require().NoError(s.service.WarmSnapshot(s.ctx))
		admin, err := s.service.GetRoleByName(s.ctx, "super-admin")
		s.Require().NoError(err)
		s.True(s.service.HasPermission(s.ctx, []id.RoleID{admin.ID}, "rbac.manage"))
		s.True(s.service.HasAnyRole(s.ctx, []id.RoleID{admin.ID}, []string{"super-admin"}))
	})
}

// TestListPermissions verifies catalog pass-through with category filter.
func (s *ServiceSuite) TestListPermissions() {
	all := s.service.ListPermissions(s.ctx, "")
	s.Equal(s.catalog.Len(), len(all))

	compliance := s.service.ListPermissions(s.ctx, "Compliance")
	s.Require().NotEmpty(compliance)
	for _, p := range compliance {
		s.Equal("Compliance", p.Category)
	}
}

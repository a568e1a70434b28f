package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
)

// failingAuditStore wraps an AuditStore and fails Append on demand.
type failingAuditStore struct {
	AuditStore
	fail bool
}

func (f *failingAuditStore) Append(ctx context.Context, entry models.AuditEntry) error {
	if f.fail {
		return dErrors.New(dErrors.CodeInternal, "audit storage unavailable")
	}
	return f.AuditStore.Append(ctx, entry)
}

// TestGrantAndRevoke verifies binding mutations, audit coupling, and
// idempotence.
func (s *ServiceSuite) TestGrantAndRevoke() {
	permID := id.PermissionID("perm-record-read")

	s.Run("grant binds the permission and audits exactly once", func() {
		role := s.mustCreateRole("grant-target")

		updated, changed, err := s.service.GrantPermission(s.ctx, role.ID, permID)
		s.Require().NoError(err)
		s.True(changed)
		s.True(updated.HasPermission(permID))

		entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: role.ID})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(models.AuditActionGrant, entries[0].Action)
		s.Equal(permID, entries[0].PermissionID)
		s.Equal("admin@example.org", entries[0].Actor)
	})

	s.Run("duplicate grant is a no-op without audit entry", func() {
		role := s.mustCreateRole("grant-noop")
		_, _, err := s.service.GrantPermission(s.ctx, role.ID, permID)
		s.Require().NoError(err)
		before, err := s.service.GetRole(s.ctx, role.ID)
		s.Require().NoError(err)

		after, changed, err := s.service.GrantPermission(s.ctx, role.ID, permID)
		s.Require().NoError(err)
		s.False(changed)
		s.Equal(before.Version, after.Version)
		s.Equal(before.UpdatedAt, after.UpdatedAt)

		entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: role.ID})
		s.Require().NoError(err)
		s.Len(entries, 1, "no second entry for the no-op")
	})

	s.Run("revoke of unbound permission is a no-op", func() {
		role := s.mustCreateRole("revoke-noop")

		_, changed, err := s.service.RevokePermission(s.ctx, role.ID, permID)
		s.Require().NoError(err)
		s.False(changed)

		entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: role.ID})
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("unregistered permission returns not found", func() {
		role := s.mustCreateRole("unknown-perm")
		_, _, err := s.service.GrantPermission(s.ctx, role.ID, "perm-bogus")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown role returns not found", func() {
		_, _, err := s.service.GrantPermission(s.ctx, id.RoleID(uuid.New()), permID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestSystemRoleImmutability verifies mutations of system roles are rejected
// as conflicts and never audited.
func (s *ServiceSuite) TestSystemRoleImmutability() {
	s.Require().NoError(s.service.EnsureSystemRoles(s.ctx))
	admin, err := s.service.GetRoleByName(s.ctx, "super-admin")
	s.Require().NoError(err)

	_, _, err = s.service.RevokePermission(s.ctx, admin.ID, "perm-record-read")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, _, err = s.service.TogglePermission(s.ctx, admin.ID, "perm-record-read")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: admin.ID})
	s.Require().NoError(err)
	s.Empty(entries, "rejected mutations are not audited")

	found, err := s.service.GetRole(s.ctx, admin.ID)
	s.Require().NoError(err)
	s.True(found.HasPermission("perm-record-read"), "system role state unchanged")
}

// TestToggle verifies toggling flips and always audits.
func (s *ServiceSuite) TestToggle() {
	permID := id.PermissionID("perm-appointment-write")
	role := s.mustCreateRole("toggle-target")

	_, bound, err := s.service.TogglePermission(s.ctx, role.ID, permID)
	s.Require().NoError(err)
	s.True(bound)

	_, bound, err = s.service.TogglePermission(s.ctx, role.ID, permID)
	s.Require().NoError(err)
	s.False(bound)

	entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: role.ID})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(models.AuditActionGrant, entries[0].Action)
	s.Equal(models.AuditActionRevoke, entries[1].Action)
}

// TestConcurrentToggleConvergence verifies serialized toggles: every toggle
// commits, every commit audits, and the final binding state matches the
// parity of the toggle count.
func (s *ServiceSuite) TestConcurrentToggleConvergence() {
	permID := id.PermissionID("perm-record-write")
	role := s.mustCreateRole("toggle-race")

	const toggles = 30
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.service.TogglePermission(s.ctx, role.ID, permID)
			s.NoError(err)
		}()
	}
	wg.Wait()

	found, err := s.service.GetRole(s.ctx, role.ID)
	s.Require().NoError(err)
	s.False(found.HasPermission(permID), "even number of toggles ends unbound")

	entries, err := s.service.GetAuditTrail(s.ctx, models.AuditQuery{RoleID: role.ID})
	s.Require().NoError(err)
	s.Len(entries, toggles, "every toggle writes exactly one entry")

	s.False(s.service.HasPermission(s.ctx, []id.RoleID{role.ID}, "record.write"))
}

// TestConcurrentToggleSnapshotAgreement verifies the snapshot never ends up
// behind the store: republishes race each other outside the role lock, and a
// publish carrying an older committed state must lose to the newer one.
func (s *ServiceSuite) TestConcurrentToggleSnapshotAgreement() {
	permID := id.PermissionID("perm-record-share")
	role := s.mustCreateRole("snapshot-race")

	const rounds = 50
	for i := 0; i < rounds; i++ {
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := s.service.TogglePermission(s.ctx, role.ID, permID)
				s.NoError(err)
			}()
		}
		wg.Wait()

		found, err := s.service.GetRole(s.ctx, role.ID)
		s.Require().NoError(err)
		s.Require().Equal(found.HasPermission(permID),
			s.service.HasPermission(s.ctx, []id.RoleID{role.ID}, "record.share"),
			"store and snapshot disagree after round %d", i)
	}
}

// TestAuditAppendFailureRollsBack verifies the no-audit-less-change rule: a
// failing audit append aborts the binding mutation.
func (s *ServiceSuite) TestAuditAppendFailureRollsBack() {
	failing := &failingAuditStore{AuditStore: s.auditLog}
	svc := New(s.roles, failing, s.catalog, s.service.snapshot)

	role, err := svc.CreateRole(s.ctx, "audit-fail", "Audit Fail", "")
	s.Require().NoError(err)

	failing.fail = true
	_, _, err = svc.GrantPermission(s.ctx, role.ID, "perm-record-read")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	found, err := svc.GetRole(s.ctx, role.ID)
	s.Require().NoError(err)
	s.False(found.HasPermission("perm-record-read"), "grant must not survive the failed append")
	s.False(svc.HasPermission(s.ctx, []id.RoleID{role.ID}, "record.read"))

	failing.fail = false
	_, changed, err := svc.GrantPermission(s.ctx, role.ID, "perm-record-read")
	s.Require().NoError(err)
	s.True(changed, "recovered store accepts the retry")
}

package snapshot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
)

type staticResolver map[id.PermissionID]string

func (r staticResolver) NameOf(permID id.PermissionID) (string, bool) {
	name, ok := r[permID]
	return name, ok
}

type SnapshotSuite struct {
	suite.Suite
	publisher *Publisher
	resolver  staticResolver
}

func (s *SnapshotSuite) SetupTest() {
	s.publisher = NewPublisher()
	s.resolver = staticResolver{
		"perm-record-read":  "record.read",
		"perm-record-write": "record.write",
		"perm-audit-view":   "audit.view",
	}
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotSuite))
}

func (s *SnapshotSuite) newRole(name string, perms ...id.PermissionID) *models.Role {
	role, err := models.NewRole(id.RoleID(uuid.New()), name, name, "", time.Now())
	s.Require().NoError(err)
	for _, pid := range perms {
		role.Permissions[pid] = struct{}{}
	}
	return role
}

// TestEmptyView verifies the initial view denies everything.
func (s *SnapshotSuite) TestEmptyView() {
	view := s.publisher.Current()
	s.False(view.HasPermission([]id.RoleID{id.RoleID(uuid.New())}, "record.read"))
	s.False(view.HasAnyRole([]id.RoleID{id.RoleID(uuid.New())}, []string{"admin"}))
	s.True(view.HasAllRoles(nil, nil))
}

// TestRebuildAndResolution verifies permission union across roles.
func (s *SnapshotSuite) TestRebuildAndResolution() {
	nurse := s.newRole("nurse", "perm-record-read")
	auditor := s.newRole("auditor", "perm-audit-view")
	s.publisher.Rebuild([]*models.Role{nurse, auditor}, s.resolver)
	view := s.publisher.Current()

	s.Run("resolves permission through any held role", func() {
		both := []id.RoleID{nurse.ID, auditor.ID}
		s.True(view.HasPermission(both, "record.read"))
		s.True(view.HasPermission(both, "audit.view"))
		s.False(view.HasPermission(both, "record.write"))
	})

	s.Run("unknown roles are ignored", func() {
		s.True(view.HasPermission([]id.RoleID{id.RoleID(uuid.New()), nurse.ID}, "record.read"))
		s.False(view.HasPermission([]id.RoleID{id.RoleID(uuid.New())}, "record.read"))
	})

	s.Run("hasAnyRole matches on role name", func() {
		held := []id.RoleID{nurse.ID}
		s.True(view.HasAnyRole(held, []string{"admin", "nurse"}))
		s.False(view.HasAnyRole(held, []string{"admin", "auditor"}))
	})

	s.Run("hasAllRoles requires full coverage", func() {
		s.True(view.HasAllRoles([]id.RoleID{nurse.ID, auditor.ID}, []string{"nurse", "auditor"}))
		s.False(view.HasAllRoles([]id.RoleID{nurse.ID}, []string{"nurse", "auditor"}))
	})
}

// TestUpsertIsolation verifies published views are immutable: a reader holding
// an old view keeps seeing the old state after a republish.
func (s *SnapshotSuite) TestUpsertIsolation() {
	role := s.newRole("clerk", "perm-record-read")
	s.publisher.Rebuild([]*models.Role{role}, s.resolver)

	before := s.publisher.Current()
	s.True(before.HasPermission([]id.RoleID{role.ID}, "record.read"))

	role.ApplyGrant("perm-record-write", time.Now())
	s.publisher.Upsert(role, s.resolver)

	s.False(before.HasPermission([]id.RoleID{role.ID}, "record.write"), "old view must not see the new grant")

	after := s.publisher.Current()
	s.True(after.HasPermission([]id.RoleID{role.ID}, "record.write"))
	s.True(after.HasPermission([]id.RoleID{role.ID}, "record.read"))
}

// TestRemove verifies a deleted role stops resolving.
func (s *SnapshotSuite) TestRemove() {
	role := s.newRole("temp", "perm-record-read")
	s.publisher.Rebuild([]*models.Role{role}, s.resolver)
	s.publisher.Remove(role.ID)

	view := s.publisher.Current()
	s.False(view.HasPermission([]id.RoleID{role.ID}, "record.read"))
	s.False(view.HasAnyRole([]id.RoleID{role.ID}, []string{"temp"}))
	s.Nil(view.PermissionNames(role.ID))
}

// TestOutOfOrderPublishDropped verifies the version guard: publishes arrive
// outside the store's per-role lock, so one that lost the race to a newer
// state must not overwrite it.
func (s *SnapshotSuite) TestOutOfOrderPublishDropped() {
	role := s.newRole("clerk")

	// Two committed states of the same role: version 2 grants, version 3
	// revokes again.
	granted := role.Clone()
	granted.ApplyGrant("perm-record-read", time.Now())
	revoked := granted.Clone()
	revoked.ApplyRevoke("perm-record-read", time.Now())

	s.Run("stale upsert after newer state", func() {
		s.publisher.Upsert(revoked, s.resolver)
		s.publisher.Upsert(granted, s.resolver)

		view := s.publisher.Current()
		s.False(view.HasPermission([]id.RoleID{role.ID}, "record.read"),
			"older committed state must not overwrite the newer publish")
	})

	s.Run("equal version republish is a no-op", func() {
		before := s.publisher.Current()
		s.publisher.Upsert(revoked, s.resolver)
		s.Same(before, s.publisher.Current())
	})

	s.Run("newer version still publishes", func() {
		regranted := revoked.Clone()
		regranted.ApplyGrant("perm-record-read", time.Now())
		s.publisher.Upsert(regranted, s.resolver)
		s.True(s.publisher.Current().HasPermission([]id.RoleID{role.ID}, "record.read"))
	})
}

// TestLatePublishAfterRemove verifies a publish that raced a delete cannot
// resurrect the removed role.
func (s *SnapshotSuite) TestLatePublishAfterRemove() {
	role := s.newRole("temp", "perm-record-read")
	s.publisher.Rebuild([]*models.Role{role}, s.resolver)
	s.publisher.Remove(role.ID)

	late := role.Clone()
	late.ApplyGrant("perm-record-write", time.Now())
	s.publisher.Upsert(late, s.resolver)

	view := s.publisher.Current()
	s.False(view.HasPermission([]id.RoleID{role.ID}, "record.read"))
	s.False(view.HasPermission([]id.RoleID{role.ID}, "record.write"))
	s.False(view.HasAnyRole([]id.RoleID{role.ID}, []string{"temp"}))
}

// TestUnknownPermissionIDsDropped verifies IDs the resolver cannot name are
// simply absent from the view.
func (s *SnapshotSuite) TestUnknownPermissionIDsDropped() {
	role := s.newRole("mixed", "perm-record-read", "perm-not-in-catalog")
	s.publisher.Rebuild([]*models.Role{role}, s.resolver)

	names := s.publisher.Current().PermissionNames(role.ID)
	s.Equal([]string{"record.read"}, names)
}

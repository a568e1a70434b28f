package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"accessd/internal/rbac/catalog"
	"accessd/internal/rbac/models"
	"accessd/internal/rbac/service/mocks"
	"accessd/internal/rbac/snapshot"
	auditstore "accessd/internal/rbac/store/audit"
	rolestore "accessd/internal/rbac/store/role"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
	"accessd/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	catalog  *catalog.Catalog
	roles    *rolestore.InMemory
	auditLog *auditstore.InMemory
	service  *Service
	ctx      context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.catalog = catalog.New()
	s.Require().NoError(s.catalog.RegisterDefaults())
	s.roles = rolestore.NewInMemory()
	s.auditLog = auditstore.NewInMemory()
	s.service = New(s.roles, s.auditLog, s.catalog, snapshot.NewPublisher())
	s.ctx = requestcontext.WithActor(context.Background(), "admin@example.org")
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) mustCreateRole(name string) *models.Role {
	role, err := s.service.CreateRole(s.ctx, name, name+" Display", "")
	s.Require().NoError(err)
	return role
}

// TestCreateRole verifies creation, validation, and name uniqueness.
func (s *ServiceSuite) TestCreateRole() {
	s.Run("creates a custom role with empty permissions", func() {
		role, err := s.service.CreateRole(s.ctx, " nurse ", "Registered Nurse", "Ward staff")
		s.Require().NoError(err)
		s.Equal("nurse", role.Name, "name is trimmed")
		s.False(role.IsSystem)
		s.Empty(role.Permissions)
		s.Equal(int64(1), role.Version)
	})

	s.Run("rejects empty name", func() {
		_, err := s.service.CreateRole(s.ctx, "  ", "Display", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duplicate name as validation error", func() {
		s.mustCreateRole("duplicate")
		_, err := s.service.CreateRole(s.ctx, "duplicate", "Other", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestUpdateRoleMetadata verifies metadata updates and optimistic concurrency.
func (s *ServiceSuite) TestUpdateRoleMetadata() {
	s.Run("updates display name and bumps version", func() {
		role := s.mustCreateRole("update-me")
		displayName := "New Display"

		updated, err := s.service.UpdateRoleMetadata(s.ctx, role.ID, &displayName, nil, 0)
		s.Require().NoError(err)
		s.Equal("New Display", updated.DisplayName)
		s.Equal(role.Version+1, updated.Version)
	})

	s.Run("no-op update does not bump version", func() {
		role := s.mustCreateRole("noop-update")
		same := role.DisplayName

		updated, err := s.service.UpdateRoleMetadata(s.ctx, role.ID, &same, nil, 0)
		s.Require().NoError(err)
		s.Equal(role.Version, updated.Version)
	})

	s.Run("stale expected version fails with concurrency error", func() {
		role := s.mustCreateRole("stale-version")
		displayName := "First"
		_, err := s.service.UpdateRoleMetadata(s.ctx, role.ID, &displayName, nil, role.Version)
		s.Require().NoError(err)

		displayName = "Second"
		_, err = s.service.UpdateRoleMetadata(s.ctx, role.ID, &displayName, nil, role.Version)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConcurrency))

		found, err := s.service.GetRole(s.ctx, role.ID)
		s.Require().NoError(err)
		s.Equal("First", found.DisplayName, "stale update must change nothing")
	})

	s.Run("unknown role returns not found", func() {
		displayName := "X"
		_, err := s.service.UpdateRoleMetadata(s.ctx, id.RoleID(uuid.New()), &displayName, nil, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestDeleteRole verifies deletion preconditions.
func (s *ServiceSuite) TestDeleteRole() {
	s.Run("deletes a custom role and stops resolving it", func() {
		role := s.mustCreateRole("deletable")
		_, _, err := s.service.GrantPermission(s.ctx, role.ID, "perm-record-read")
		s.Require().NoError(err)
		s.True(s.service.HasPermission(s.ctx, []id.RoleID{role.ID}, "record.read"))

		s.Require().NoError(s.service.DeleteRole(s.ctx, role.ID))

		_, err = s.service.GetRole(s.ctx, role.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.False(s.service.HasPermission(s.ctx, []id.RoleID{role.ID}, "record.read"))
	})

	s.Run("rejects deleting a role with assigned users", func() {
		users := mocks.NewMockUserCounter(s.ctrl)
		svc := New(s.roles, s.auditLog, s.catalog, snapshot.NewPublisher(), WithUserCounter(users))

		role, err := svc.CreateRole(s.ctx, "assigned", "Assigned", "")
		s.Require().NoError(err)
		users.EXPECT().CountByRole(gomock.Any(), role.ID).Return(4, nil).AnyTimes()

		err = svc.DeleteRole(s.ctx, role.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		found, err := svc.GetRole(s.ctx, role.ID)
		s.Require().NoError(err, "failed deletion must keep the role")
		s.Equal(4, found.UserCount)
	})

	s.Run("unknown role returns not found", func() {
		err := s.service.DeleteRole(s.ctx, id.RoleID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestListRoles verifies search filtering and user-count enrichment.
func (s *ServiceSuite) TestListRoles() {
	users := mocks.NewMockUserCounter(s.ctrl)
	svc := New(s.roles, s.auditLog, s.catalog, snapshot.NewPublisher(), WithUserCounter(users))

	role, err := svc.CreateRole(s.ctx, "countable", "Countable", "")
	s.Require().NoError(err)
	users.EXPECT().CountByRole(gomock.Any(), role.ID).Return(7, nil).AnyTimes()

	roles, err := svc.ListRoles(s.ctx, "countable")
	s.Require().NoError(err)
	s.Require().Len(roles, 1)
	s.Equal(7, roles[0].UserCount)

	// The service trims the term, so padding behaves the same on every
	// store backend.
	padded, err := svc.ListRoles(s.ctx, "  countable  ")
	s.Require().NoError(err)
	s.Len(padded, 1)
}

// TestRequestScopedClock verifies mutation timestamps come from the request
// context, not the wall clock.
func (s *ServiceSuite) TestRequestScopedClock() {
	at := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, at)

	role, err := s.service.CreateRole(ctx, "clocked", "Clocked", "")
	s.Require().NoError(err)
	s.Equal(at, role.CreatedAt)

	updated, _, err := s.service.GrantPermission(ctx, role.ID, "perm-record-read")
	s.Require().NoError(err)
	s.Equal(at, updated.UpdatedAt)

	entries, err := s.service.GetAuditTrail(ctx, models.AuditQuery{RoleID: role.ID})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(at, entries[0].Timestamp)
}

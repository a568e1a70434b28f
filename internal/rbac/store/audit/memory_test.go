package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
)

type AuditStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *AuditStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) newEntry(roleID id.RoleID, action models.AuditAction, at time.Time) models.AuditEntry {
	return models.AuditEntry{
		ID:           uuid.New(),
		RoleID:       roleID,
		PermissionID: id.PermissionID("perm-record-read"),
		Action:       action,
		Actor:        "admin@example.org",
		Timestamp:    at,
	}
}

// TestAppendAndQuery verifies filtering and ordering of the trail.
func (s *AuditStoreSuite) TestAppendAndQuery() {
	roleA := id.RoleID(uuid.New())
	roleB := id.RoleID(uuid.New())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(s.ctx, s.newEntry(roleA, models.AuditActionGrant, base.Add(2*time.Hour))))
	s.Require().NoError(s.store.Append(s.ctx, s.newEntry(roleB, models.AuditActionGrant, base)))
	s.Require().NoError(s.store.Append(s.ctx, s.newEntry(roleA, models.AuditActionRevoke, base.Add(time.Hour))))

	s.Run("unfiltered query returns all entries in timestamp order", func() {
		entries, err := s.store.Query(s.ctx, models.AuditQuery{})
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal(roleB, entries[0].RoleID)
		s.Equal(models.AuditActionRevoke, entries[1].Action)
		s.Equal(models.AuditActionGrant, entries[2].Action)
	})

	s.Run("filters by role", func() {
		entries, err := s.store.Query(s.ctx, models.AuditQuery{RoleID: roleA})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		for _, e := range entries {
			s.Equal(roleA, e.RoleID)
		}
	})

	s.Run("filters by time range inclusively", func() {
		entries, err := s.store.Query(s.ctx, models.AuditQuery{
			From: base.Add(time.Hour),
			To:   base.Add(2 * time.Hour),
		})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(base.Add(time.Hour), entries[0].Timestamp)
		s.Equal(base.Add(2*time.Hour), entries[1].Timestamp)
	})

	s.Run("combined filters intersect", func() {
		entries, err := s.store.Query(s.ctx, models.AuditQuery{
			RoleID: roleA,
			To:     base.Add(90 * time.Minute),
		})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(models.AuditActionRevoke, entries[0].Action)
	})

	s.Run("no match returns empty slice", func() {
		entries, err := s.store.Query(s.ctx, models.AuditQuery{RoleID: id.RoleID(uuid.New())})
		s.Require().NoError(err)
		s.NotNil(entries)
		s.Empty(entries)
	})
}

// TestStableOrderForEqualTimestamps verifies ties keep append order.
func (s *AuditStoreSuite) TestStableOrderForEqualTimestamps() {
	roleID := id.RoleID(uuid.New())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := s.newEntry(roleID, models.AuditActionGrant, at)
	second := s.newEntry(roleID, models.AuditActionRevoke, at)
	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	entries, err := s.store.Query(s.ctx, models.AuditQuery{RoleID: roleID})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first.ID, entries[0].ID)
	s.Equal(second.ID, entries[1].ID)
}

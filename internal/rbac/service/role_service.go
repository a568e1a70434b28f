package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
	"accessd/pkg/platform/sentinel"
	"accessd/pkg/requestcontext"
)

// CreateRole creates a custom role with an empty permission set.
func (s *Service) CreateRole(ctx context.Context, name, displayName, description string) (*models.Role, error) {
	start := time.Now()
	name = strings.TrimSpace(name)

	role, err := models.NewRole(id.RoleID(uuid.New()), name, displayName, description, requestcontext.Now(ctx))
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.roles.CreateIfNameAvailable(ctx, role); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeValidation, "role name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create role")
	}

	s.publishRole(ctx, role)
	s.logAudit(ctx, "role_created",
		"role_id", role.ID, "role_name", role.Name, "actor", s.actor(ctx))
	s.observeMutation(start)
	return role, nil
}

// GetRole returns a role by ID with a fresh user count when a counter is
// wired.
func (s *Service) GetRole(ctx context.Context, roleID id.RoleID) (*models.Role, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role")
	}
	s.refreshUserCount(ctx, role)
	return role, nil
}

// GetRoleByName returns a role by its exact name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	role, err := s.roles.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role")
	}
	s.refreshUserCount(ctx, role)
	return role, nil
}

// ListRoles returns all roles, optionally filtered by a case-insensitive
// substring match on display name or description.
func (s *Service) ListRoles(ctx context.Context, searchTerm string) ([]*models.Role, error) {
	// Trim here so both store backends match against the same term.
	roles, err := s.roles.List(ctx, strings.TrimSpace(searchTerm))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}
	for _, role := range roles {
		s.refreshUserCount(ctx, role)
	}
	return roles, nil
}

// UpdateRoleMetadata updates the mutable descriptive fields of a role. Name
// is immutable. expectedVersion > 0 enables the optimistic concurrency check;
// a stale version fails with a concurrency error and changes nothing.
// Display-name and description edits are allowed on system roles.
func (s *Service) UpdateRoleMetadata(
	ctx context.Context,
	roleID id.RoleID,
	displayName, description *string,
	expectedVersion int64,
) (*models.Role, error) {
	start := time.Now()
	if displayName != nil && len(*displayName) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "role display name must be 128 characters or less")
	}

	role, changed, err := s.roles.Execute(ctx, roleID,
		func(r *models.Role) error { return r.CanUpdateMetadata(expectedVersion) },
		func(r *models.Role) bool { return r.ApplyMetadata(displayName, description, requestcontext.Now(ctx)) },
		nil,
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConcurrency) && s.metrics != nil {
			s.metrics.VersionConflicts.Inc()
		}
		return nil, s.translateRoleError(err, "failed to update role")
	}

	if changed {
		s.publishRole(ctx, role)
		s.logAudit(ctx, "role_updated",
			"role_id", role.ID, "role_name", role.Name, "actor", s.actor(ctx))
	}
	s.observeMutation(start)
	return role, nil
}

// DeleteRole removes a custom role. System roles and roles with assigned
// users cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	start := time.Now()

	err := s.roles.Delete(ctx, roleID, func(r *models.Role) error {
		s.refreshUserCount(ctx, r)
		return r.CanDelete()
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			// Deletion preconditions surface as conflicts to the API.
			return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
		}
		return s.translateRoleError(err, "failed to delete role")
	}

	s.unpublishRole(ctx, roleID)
	s.logAudit(ctx, "role_deleted",
		"role_id", roleID, "actor", s.actor(ctx))
	s.observeMutation(start)
	return nil
}

func (s *Service) refreshUserCount(ctx context.Context, role *models.Role) {
	if s.users == nil {
		return
	}
	count, err := s.users.CountByRole(ctx, role.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "user count lookup failed",
				"role_id", role.ID, "error", err)
		}
		return
	}
	role.UserCount = count
}

func (s *Service) translateRoleError(err error, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

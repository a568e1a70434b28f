package service

import (
	"context"
	"time"

	id "accessd/pkg/domain"
)

// Authorization checks resolve against the atomically published snapshot:
// no store access, no locks. Unknown role IDs and unregistered permission
// names simply fail the check; a check is never an error.

// HasPermission reports whether any of the roles carries the permission with
// the given dot-namespaced name.
func (s *Service) HasPermission(_ context.Context, roleIDs []id.RoleID, permissionName string) bool {
	defer s.observeCheck(time.Now())
	return s.snapshot.Current().HasPermission(roleIDs, permissionName)
}

// HasAnyRole reports whether any of the role IDs resolves to one of the
// candidate role names.
func (s *Service) HasAnyRole(_ context.Context, roleIDs []id.RoleID, roleNames []string) bool {
	defer s.observeCheck(time.Now())
	return s.snapshot.Current().HasAnyRole(roleIDs, roleNames)
}

// HasAllRoles reports whether every candidate role name is covered by the
// role IDs.
func (s *Service) HasAllRoles(_ context.Context, roleIDs []id.RoleID, roleNames []string) bool {
	defer s.observeCheck(time.Now())
	return s.snapshot.Current().HasAllRoles(roleIDs, roleNames)
}

func (s *Service) observeCheck(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAuthzCheck(start)
	}
}

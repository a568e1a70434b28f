// Package usercount provides a development stand-in for the identity
// service's user-role assignment counts.
package usercount

import (
	"context"
	"sync"

	id "accessd/pkg/domain"
)

// Static serves user counts from an in-process map. Roles without an entry
// count zero. Production deployments replace this with a client for the
// identity service.
type Static struct {
	mu     sync.RWMutex
	counts map[id.RoleID]int
}

// NewStatic creates an empty static counter.
func NewStatic() *Static {
	return &Static{counts: make(map[id.RoleID]int)}
}

// Set records the user count for a role.
func (s *Static) Set(roleID id.RoleID, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[roleID] = count
}

// CountByRole returns the recorded count for a role, zero when unknown.
func (s *Static) CountByRole(_ context.Context, roleID id.RoleID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[roleID], nil
}

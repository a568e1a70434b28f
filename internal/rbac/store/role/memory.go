// Package role provides the role store implementations. The store contract
// (accessd/internal/rbac/service.RoleStore) pairs an in-memory store for
// development and tests with a PostgreSQL store for production.
package role

import (
	"context"
	"strings"
	"sync"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	"accessd/pkg/platform/sentinel"
)

// InMemory is a thread-safe in-memory role store. Mutations of a given role
// are serialized on a per-role mutex; mutations of different roles proceed in
// parallel. The store hands out deep copies, so callers never share state
// with it.
type InMemory struct {
	mu     sync.RWMutex
	roles  map[id.RoleID]*models.Role
	byName map[string]id.RoleID
	order  []id.RoleID
	locks  map[id.RoleID]*sync.Mutex
}

// NewInMemory constructs an empty in-memory role store.
func NewInMemory() *InMemory {
	return &InMemory{
		roles:  make(map[id.RoleID]*models.Role),
		byName: make(map[string]id.RoleID),
		locks:  make(map[id.RoleID]*sync.Mutex),
	}
}

// CreateIfNameAvailable inserts the role unless its name is taken.
// Name uniqueness is case-sensitive.
func (s *InMemory) CreateIfNameAvailable(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[role.Name]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.roles[role.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := role.Clone()
	s.roles[cp.ID] = cp
	s.byName[cp.Name] = cp.ID
	s.order = append(s.order, cp.ID)
	s.locks[cp.ID] = &sync.Mutex{}
	return nil
}

// FindByID returns a copy of the role.
func (s *InMemory) FindByID(_ context.Context, roleID id.RoleID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[roleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return role.Clone(), nil
}

// FindByName returns a copy of the role with the exact (case-sensitive) name.
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roleID, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.roles[roleID].Clone(), nil
}

// List returns roles in creation order. A non-empty searchTerm filters by
// case-insensitive substring match against display name and description.
func (s *InMemory) List(_ context.Context, searchTerm string) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(searchTerm)
	out := make([]*models.Role, 0, len(s.order))
	for _, roleID := range s.order {
		role := s.roles[roleID]
		if term != "" &&
			!strings.Contains(strings.ToLower(role.DisplayName), term) &&
			!strings.Contains(strings.ToLower(role.Description), term) {
			continue
		}
		out = append(out, role.Clone())
	}
	return out, nil
}

// Execute runs validate, then mutate, on the role identified by roleID while
// holding that role's lock, so concurrent mutations of the same role are
// serialized and lost updates cannot occur.
//
// mutate reports whether it changed the role. When it did, commit runs before
// the change becomes visible; a commit error discards the mutation, which is
// how a failed audit append rolls back a binding change. The updated copy is
// returned together with the changed flag.
func (s *InMemory) Execute(
	ctx context.Context,
	roleID id.RoleID,
	validate func(*models.Role) error,
	mutate func(*models.Role) bool,
	commit func(ctx context.Context, updated *models.Role) error,
) (*models.Role, bool, error) {
	lock, err := s.roleLock(roleID)
	if err != nil {
		return nil, false, err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.roles[roleID]
	if !ok {
		// Deleted while we waited on the role lock.
		s.mu.RUnlock()
		return nil, false, sentinel.ErrNotFound
	}
	working := current.Clone()
	s.mu.RUnlock()

	if validate != nil {
		if err := validate(working); err != nil {
			return nil, false, err
		}
	}
	if !mutate(working) {
		return working, false, nil
	}
	if commit != nil {
		if err := commit(ctx, working); err != nil {
			return nil, false, err
		}
	}

	s.mu.Lock()
	s.roles[roleID] = working
	s.mu.Unlock()
	return working.Clone(), true, nil
}

// Delete removes the role after validate accepts it, holding the role lock
// for the whole check-then-remove sequence.
func (s *InMemory) Delete(_ context.Context, roleID id.RoleID, validate func(*models.Role) error) error {
	lock, err := s.roleLock(roleID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(role.Clone()); err != nil {
			return err
		}
	}

	delete(s.roles, roleID)
	delete(s.byName, role.Name)
	delete(s.locks, roleID)
	for i, ordered := range s.order {
		if ordered == roleID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of stored roles.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roles), nil
}

func (s *InMemory) roleLock(roleID id.RoleID) (*sync.Mutex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[roleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return lock, nil
}

// Package snapshot maintains the read view that authorization checks resolve
// against. Writers republish an immutable View after every committed role
// mutation; readers load it atomically and never contend with role locks or
// observe a partially-applied change.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
)

// View is an immutable resolution of role IDs to role names and permission
// names. Once published it is never modified. Each role carries the store
// version it was published at, so the publisher can reject out-of-order
// republishes.
type View struct {
	builtAt      time.Time
	rolePerms    map[id.RoleID]map[string]struct{}
	roleNames    map[id.RoleID]string
	roleVersions map[id.RoleID]int64
}

// BuiltAt returns when the view was published.
func (v *View) BuiltAt() time.Time {
	return v.builtAt
}

// Len returns the number of roles in the view.
func (v *View) Len() int {
	return len(v.roleNames)
}

// HasPermission reports whether at least one of the roles carries a
// permission with the given name. Flat union, no inheritance.
func (v *View) HasPermission(roleIDs []id.RoleID, permissionName string) bool {
	for _, roleID := range roleIDs {
		if perms, ok := v.rolePerms[roleID]; ok {
			if _, ok := perms[permissionName]; ok {
				return true
			}
		}
	}
	return false
}

// HasAnyRole reports whether any of the role IDs resolves to one of the
// candidate role names.
func (v *View) HasAnyRole(roleIDs []id.RoleID, candidateNames []string) bool {
	for _, roleID := range roleIDs {
		name, ok := v.roleNames[roleID]
		if !ok {
			continue
		}
		for _, candidate := range candidateNames {
			if name == candidate {
				return true
			}
		}
	}
	return false
}

// HasAllRoles reports whether every candidate role name is covered by at
// least one of the role IDs. An empty candidate list is trivially satisfied.
func (v *View) HasAllRoles(roleIDs []id.RoleID, candidateNames []string) bool {
	for _, candidate := range candidateNames {
		covered := false
		for _, roleID := range roleIDs {
			if v.roleNames[roleID] == candidate {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// PermissionNames returns the permission names of one role, or nil when the
// role is not in the view. The returned slice is a copy.
func (v *View) PermissionNames(roleID id.RoleID) []string {
	perms, ok := v.rolePerms[roleID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(perms))
	for name := range perms {
		out = append(out, name)
	}
	return out
}

// NameResolver maps a permission ID to its dot-namespaced name. Satisfied by
// *catalog.Catalog.
type NameResolver interface {
	NameOf(permID id.PermissionID) (string, bool)
}

// Publisher republishes the view copy-on-write. A single mutex serializes
// writers; readers only touch the atomic pointer.
//
// Republishes happen after the store commit, outside the per-role lock, so
// two goroutines can arrive here in the opposite order of their commits. The
// role version decides: an Upsert at or below the published version is
// dropped, and a removed role ID is tombstoned so a late publish cannot
// resurrect it. Role IDs are random UUIDs and never reused, so tombstones
// stay valid forever.
type Publisher struct {
	mu      sync.Mutex
	current atomic.Pointer[View]
	removed map[id.RoleID]struct{}
}

// NewPublisher constructs a publisher holding an empty view.
func NewPublisher() *Publisher {
	p := &Publisher{removed: make(map[id.RoleID]struct{})}
	p.current.Store(&View{
		builtAt:      time.Now(),
		rolePerms:    map[id.RoleID]map[string]struct{}{},
		roleNames:    map[id.RoleID]string{},
		roleVersions: map[id.RoleID]int64{},
	})
	return p
}

// Current returns the latest published view.
func (p *Publisher) Current() *View {
	return p.current.Load()
}

// Rebuild publishes a view computed from scratch. Used at boot and after
// anything that may have drifted (e.g. a store restore). A full recompute
// supersedes the publish history, so tombstones reset.
func (p *Publisher) Rebuild(roles []*models.Role, resolver NameResolver) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := &View{
		builtAt:      time.Now(),
		rolePerms:    make(map[id.RoleID]map[string]struct{}, len(roles)),
		roleNames:    make(map[id.RoleID]string, len(roles)),
		roleVersions: make(map[id.RoleID]int64, len(roles)),
	}
	for _, role := range roles {
		next.roleNames[role.ID] = role.Name
		next.rolePerms[role.ID] = resolvePermissionNames(role, resolver)
		next.roleVersions[role.ID] = role.Version
	}
	p.removed = make(map[id.RoleID]struct{})
	p.current.Store(next)
}

// Upsert publishes a view with one role replaced. Called after every
// committed mutation of that role. Publishes that do not advance the role's
// version are dropped: a newer state has already been published.
func (p *Publisher) Upsert(role *models.Role, resolver NameResolver) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, gone := p.removed[role.ID]; gone {
		return
	}
	if p.current.Load().roleVersions[role.ID] >= role.Version {
		return
	}

	next := p.cloneLocked()
	next.roleNames[role.ID] = role.Name
	next.rolePerms[role.ID] = resolvePermissionNames(role, resolver)
	next.roleVersions[role.ID] = role.Version
	p.current.Store(next)
}

// Remove publishes a view without the role. Called after a committed delete.
func (p *Publisher) Remove(roleID id.RoleID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removed[roleID] = struct{}{}

	next := p.cloneLocked()
	delete(next.roleNames, roleID)
	delete(next.rolePerms, roleID)
	delete(next.roleVersions, roleID)
	p.current.Store(next)
}

func (p *Publisher) cloneLocked() *View {
	prev := p.current.Load()
	next := &View{
		builtAt:      time.Now(),
		rolePerms:    make(map[id.RoleID]map[string]struct{}, len(prev.rolePerms)),
		roleNames:    make(map[id.RoleID]string, len(prev.roleNames)),
		roleVersions: make(map[id.RoleID]int64, len(prev.roleVersions)),
	}
	for roleID, name := range prev.roleNames {
		next.roleNames[roleID] = name
	}
	// Permission sets are immutable once published, sharing them is safe.
	for roleID, perms := range prev.rolePerms {
		next.rolePerms[roleID] = perms
	}
	for roleID, version := range prev.roleVersions {
		next.roleVersions[roleID] = version
	}
	return next
}

func resolvePermissionNames(role *models.Role, resolver NameResolver) map[string]struct{} {
	perms := make(map[string]struct{}, len(role.Permissions))
	for pid := range role.Permissions {
		if name, ok := resolver.NameOf(pid); ok {
			perms[name] = struct{}{}
		}
	}
	return perms
}

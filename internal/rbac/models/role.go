package models

import (
	"sort"
	"time"

	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
)

// Role is a named, mutable set of permissions plus system-or-custom status.
//
// Invariants:
//   - Name is non-empty, at most 64 characters, unique across the store
//     (case-sensitive), and immutable after creation
//   - Every PermissionID in Permissions exists in the catalog (enforced by
//     the binding service, which is the only writer of Permissions)
//   - If IsSystem is true, Permissions never changes after creation and the
//     role can never be deleted or renamed
//   - UserCount is informational, owned by the external identity service;
//     a positive count blocks deletion
//   - Version increments exactly once per committed mutation
type Role struct {
	ID          id.RoleID                      `json:"id"`
	Name        string                         `json:"name"`
	DisplayName string                         `json:"display_name"`
	Description string                         `json:"description"`
	Permissions map[id.PermissionID]struct{}   `json:"-"`
	UserCount   int                            `json:"user_count"`
	IsSystem    bool                           `json:"is_system"`
	Version     int64                          `json:"version"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}

// NewRole constructs a custom role. Roles created through the API are never
// system roles; system roles enter the store only through seeding.
func NewRole(roleID id.RoleID, name, displayName, description string, now time.Time) (*Role, error) {
	if roleID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role id cannot be nil")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role name cannot be empty")
	}
	if len(name) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role name must be 64 characters or less")
	}
	if len(displayName) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role display name must be 128 characters or less")
	}
	return &Role{
		ID:          roleID,
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Permissions: make(map[id.PermissionID]struct{}),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a deep copy. Stores hand out and mutate copies so concurrent
// readers never observe a half-applied change.
func (r *Role) Clone() *Role {
	cp := *r
	cp.Permissions = make(map[id.PermissionID]struct{}, len(r.Permissions))
	for pid := range r.Permissions {
		cp.Permissions[pid] = struct{}{}
	}
	return &cp
}

// HasPermission reports whether the role carries the permission.
func (r *Role) HasPermission(permID id.PermissionID) bool {
	_, ok := r.Permissions[permID]
	return ok
}

// PermissionIDs returns the bound permission IDs in stable (sorted) order.
func (r *Role) PermissionIDs() []id.PermissionID {
	ids := make([]id.PermissionID, 0, len(r.Permissions))
	for pid := range r.Permissions {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CanMutateBindings checks the system-role immutability invariant.
// Use with ApplyGrant/ApplyRevoke in Execute callbacks.
func (r *Role) CanMutateBindings() error {
	if r.IsSystem {
		return dErrors.New(dErrors.CodeInvariantViolation, "system role permissions cannot be modified")
	}
	return nil
}

// ApplyGrant adds the permission and reports whether state changed.
// Granting an already-present permission is a no-op, not an error.
func (r *Role) ApplyGrant(permID id.PermissionID, now time.Time) bool {
	if r.HasPermission(permID) {
		return false
	}
	r.Permissions[permID] = struct{}{}
	r.touch(now)
	return true
}

// ApplyRevoke removes the permission and reports whether state changed.
// Revoking an absent permission is a no-op, not an error.
func (r *Role) ApplyRevoke(permID id.PermissionID, now time.Time) bool {
	if !r.HasPermission(permID) {
		return false
	}
	delete(r.Permissions, permID)
	r.touch(now)
	return true
}

// CanUpdateMetadata checks preconditions for a displayName/description update.
// expectedVersion <= 0 skips the optimistic concurrency check.
func (r *Role) CanUpdateMetadata(expectedVersion int64) error {
	if expectedVersion > 0 && expectedVersion != r.Version {
		return dErrors.New(dErrors.CodeConcurrency, "role was modified concurrently, reload and retry")
	}
	return nil
}

// ApplyMetadata updates the mutable descriptive fields. Name is immutable for
// every role, system or custom.
func (r *Role) ApplyMetadata(displayName, description *string, now time.Time) bool {
	changed := false
	if displayName != nil && *displayName != r.DisplayName {
		r.DisplayName = *displayName
		changed = true
	}
	if description != nil && *description != r.Description {
		r.Description = *description
		changed = true
	}
	if changed {
		r.touch(now)
	}
	return changed
}

// CanDelete checks the deletion preconditions. Both are independent: either
// one failing blocks deletion.
func (r *Role) CanDelete() error {
	if r.IsSystem {
		return dErrors.New(dErrors.CodeInvariantViolation, "system roles cannot be deleted")
	}
	if r.UserCount > 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "role still has assigned users")
	}
	return nil
}

func (r *Role) touch(now time.Time) {
	r.UpdatedAt = now
	r.Version++
}

package models

import (
	"regexp"

	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
)

// Permission is an atomic, named capability (e.g. "user.read") scoped to a
// category.
//
// Invariants:
//   - Name is dot-namespaced: at least two lowercase segments
//   - Category is non-empty
//   - A Permission is registered once at catalog initialization and is
//     read-only thereafter; no deletion operation exists
type Permission struct {
	ID          id.PermissionID `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	IsSystem    bool            `json:"is_system"`
}

var permissionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// NewPermission constructs a Permission, enforcing invariants.
func NewPermission(permID id.PermissionID, name, displayName, description, category string, isSystem bool) (Permission, error) {
	if permID.IsNil() {
		return Permission{}, dErrors.New(dErrors.CodeInvariantViolation, "permission id cannot be empty")
	}
	if !permissionNamePattern.MatchString(name) {
		return Permission{}, dErrors.New(dErrors.CodeInvariantViolation, "permission name must be dot-namespaced, e.g. user.read")
	}
	if category == "" {
		return Permission{}, dErrors.New(dErrors.CodeInvariantViolation, "permission category cannot be empty")
	}
	return Permission{
		ID:          permID,
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Category:    category,
		IsSystem:    isSystem,
	}, nil
}

// Equal reports whether two permissions carry the same full definition.
// Registering the same definition twice is an idempotent no-op; registering a
// different definition under an existing ID is rejected.
func (p Permission) Equal(other Permission) bool {
	return p == other
}

// Package domain holds typed identifiers and domain primitives shared across
// modules. Construct values via the Parse* functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "accessd/pkg/domain-errors"
)

// RoleID identifies a role. Distinct from other UUID-typed IDs at compile time.
type RoleID uuid.UUID

// ParseRoleID validates and returns a RoleID.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseRoleID(s string) (RoleID, error) {
	u, err := parseUUID(s, "role id")
	if err != nil {
		return RoleID{}, err
	}
	return RoleID(u), nil
}

func (r RoleID) String() string {
	return uuid.UUID(r).String()
}

// IsNil reports whether the ID is the zero UUID.
func (r RoleID) IsNil() bool {
	return uuid.UUID(r) == uuid.Nil
}

// MarshalText renders the ID in canonical UUID form.
func (r RoleID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (r *RoleID) UnmarshalText(text []byte) error {
	parsed, err := ParseRoleID(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}

// PermissionID identifies a catalog permission. Permissions are registered at
// boot with stable, human-assigned slugs (e.g. "perm-user-read"), so the ID
// is a validated string rather than a UUID.
type PermissionID string

var permissionIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// ParsePermissionID validates and returns a PermissionID.
func ParsePermissionID(s string) (PermissionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "permission id is required")
	}
	if !permissionIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "permission id must be a lowercase slug of at most 64 characters")
	}
	return PermissionID(s), nil
}

func (p PermissionID) String() string {
	return string(p)
}

// IsNil reports whether the ID is empty.
func (p PermissionID) IsNil() bool {
	return p == ""
}

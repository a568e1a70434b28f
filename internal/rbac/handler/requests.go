package handler

import (
	"strings"

	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
)

// CreateRoleRequest is the HTTP request body for POST /admin/roles.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRoleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 64 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 64 characters")
	}
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if len(r.DisplayName) > 128 {
		return dErrors.New(dErrors.CodeValidation, "display_name must be at most 128 characters")
	}
	return nil
}

// UpdateRoleRequest is the HTTP request body for PATCH /admin/roles/{roleID}.
// Absent fields are left unchanged; name is immutable and not accepted here.
type UpdateRoleRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
}

// Validate validates the request.
func (r *UpdateRoleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.DisplayName == nil && r.Description == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one of display_name or description is required")
	}
	if r.DisplayName != nil {
		trimmed := strings.TrimSpace(*r.DisplayName)
		if len(trimmed) > 128 {
			return dErrors.New(dErrors.CodeValidation, "display_name must be at most 128 characters")
		}
		r.DisplayName = &trimmed
	}
	return nil
}

// AuthzCheckRequest is the HTTP request body for POST /authz/check. Exactly
// one of permission, any_of_roles, or all_of_roles selects the check.
type AuthzCheckRequest struct {
	RoleIDs    []string `json:"role_ids"`
	Permission string   `json:"permission"`
	AnyOfRoles []string `json:"any_of_roles"`
	AllOfRoles []string `json:"all_of_roles"`

	parsedRoleIDs []id.RoleID
}

// Validate validates and parses the request.
func (r *AuthzCheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	selected := 0
	r.Permission = strings.TrimSpace(r.Permission)
	if r.Permission != "" {
		selected++
	}
	if len(r.AnyOfRoles) > 0 {
		selected++
	}
	if len(r.AllOfRoles) > 0 {
		selected++
	}
	if selected != 1 {
		return dErrors.New(dErrors.CodeValidation, "exactly one of permission, any_of_roles, or all_of_roles is required")
	}

	r.parsedRoleIDs = make([]id.RoleID, 0, len(r.RoleIDs))
	for _, raw := range r.RoleIDs {
		roleID, err := id.ParseRoleID(raw)
		if err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "role_ids entry %q must be a valid UUID", raw)
		}
		r.parsedRoleIDs = append(r.parsedRoleIDs, roleID)
	}
	return nil
}

// ParsedRoleIDs returns the validated role IDs.
func (r *AuthzCheckRequest) ParsedRoleIDs() []id.RoleID {
	return r.parsedRoleIDs
}

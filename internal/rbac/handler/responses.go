package handler

import (
	"time"

	"accessd/internal/rbac/models"
)

// RoleResponse is the HTTP representation of a role.
type RoleResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name"`
	Description   string    `json:"description"`
	PermissionIDs []string  `json:"permission_ids"`
	UserCount     int       `json:"user_count"`
	IsSystem      bool      `json:"is_system"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromRole converts a domain role to its HTTP representation.
func FromRole(role *models.Role) *RoleResponse {
	permIDs := role.PermissionIDs()
	out := make([]string, len(permIDs))
	for i, pid := range permIDs {
		out[i] = string(pid)
	}
	return &RoleResponse{
		ID:            role.ID.String(),
		Name:          role.Name,
		DisplayName:   role.DisplayName,
		Description:   role.Description,
		PermissionIDs: out,
		UserCount:     role.UserCount,
		IsSystem:      role.IsSystem,
		Version:       role.Version,
		CreatedAt:     role.CreatedAt,
		UpdatedAt:     role.UpdatedAt,
	}
}

// FromRoles converts a role list.
func FromRoles(roles []*models.Role) []*RoleResponse {
	out := make([]*RoleResponse, len(roles))
	for i, role := range roles {
		out[i] = FromRole(role)
	}
	return out
}

// BindingResponse is the HTTP response for grant and revoke. Changed is
// false when the mutation was already satisfied.
type BindingResponse struct {
	Role    *RoleResponse `json:"role"`
	Changed bool          `json:"changed"`
}

// ToggleResponse is the HTTP response for toggle. Bound reports whether the
// permission is bound after the toggle.
type ToggleResponse struct {
	Role  *RoleResponse `json:"role"`
	Bound bool          `json:"bound"`
}

// PermissionResponse is the HTTP representation of a catalog permission.
type PermissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsSystem    bool   `json:"is_system"`
}

// FromPermissions converts a permission list in catalog order.
func FromPermissions(perms []models.Permission) []PermissionResponse {
	out := make([]PermissionResponse, len(perms))
	for i, p := range perms {
		out[i] = PermissionResponse{
			ID:          string(p.ID),
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Description: p.Description,
			Category:    p.Category,
			IsSystem:    p.IsSystem,
		}
	}
	return out
}

// AuditEntryResponse is the HTTP representation of an audit entry.
type AuditEntryResponse struct {
	ID           string    `json:"id"`
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	Action       string    `json:"action"`
	Actor        string    `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`
}

// FromAuditEntries converts an audit entry list.
func FromAuditEntries(entries []models.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:           e.ID.String(),
			RoleID:       e.RoleID.String(),
			PermissionID: string(e.PermissionID),
			Action:       string(e.Action),
			Actor:        e.Actor,
			Timestamp:    e.Timestamp,
		}
	}
	return out
}

// AuthzCheckResponse is the HTTP response for POST /authz/check.
type AuthzCheckResponse struct {
	Allowed bool `json:"allowed"`
}

package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
)

// seedPermission is the JSON shape of a seed file entry.
type seedPermission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsSystem    bool   `json:"is_system"`
}

// LoadSeedFile registers every permission from a JSON seed file. The file is
// a flat array of permission definitions. Registration is idempotent, so
// re-running against a warm catalog is safe.
func (c *Catalog) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read permission seed %s: %w", path, err)
	}
	var seeds []seedPermission
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("parse permission seed %s: %w", path, err)
	}
	return c.registerSeeds(seeds)
}

func (c *Catalog) registerSeeds(seeds []seedPermission) error {
	for _, s := range seeds {
		permID, err := id.ParsePermissionID(s.ID)
		if err != nil {
			return fmt.Errorf("seed permission %q: %w", s.ID, err)
		}
		p, err := models.NewPermission(permID, s.Name, s.DisplayName, s.Description, s.Category, s.IsSystem)
		if err != nil {
			return fmt.Errorf("seed permission %q: %w", s.ID, err)
		}
		if err := c.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Default permission matrix for the medical-records platform. Used when no
// seed file is configured.
var defaultSeeds = []seedPermission{
	{ID: "perm-user-read", Name: "user.read", DisplayName: "View users", Description: "View user accounts and profiles", Category: "User Management"},
	{ID: "perm-user-write", Name: "user.write", DisplayName: "Manage users", Description: "Create and update user accounts", Category: "User Management"},
	{ID: "perm-user-delete", Name: "user.delete", DisplayName: "Delete users", Description: "Remove user accounts", Category: "User Management"},
	{ID: "perm-record-read", Name: "record.read", DisplayName: "View medical records", Description: "Read patient medical records", Category: "Medical Records"},
	{ID: "perm-record-write", Name: "record.write", DisplayName: "Edit medical records", Description: "Create and update patient medical records", Category: "Medical Records"},
	{ID: "perm-record-share", Name: "record.share", DisplayName: "Share medical records", Description: "Grant other practitioners access to a record", Category: "Medical Records"},
	{ID: "perm-appointment-read", Name: "appointment.read", DisplayName: "View appointments", Description: "View appointment schedules", Category: "Appointments"},
	{ID: "perm-appointment-write", Name: "appointment.write", DisplayName: "Manage appointments", Description: "Book, move, and cancel appointments", Category: "Appointments"},
	{ID: "perm-audit-view", Name: "audit.view", DisplayName: "View audit trail", Description: "Read the permission change audit trail", Category: "Compliance", IsSystem: true},
	{ID: "perm-rbac-manage", Name: "rbac.manage", DisplayName: "Manage roles", Description: "Create roles and change role permissions", Category: "Compliance", IsSystem: true},
}

// RegisterDefaults registers the built-in permission matrix.
func (c *Catalog) RegisterDefaults() error {
	return c.registerSeeds(defaultSeeds)
}

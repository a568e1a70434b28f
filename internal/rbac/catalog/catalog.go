// Package catalog implements the permission catalog: an immutable-after-boot
// registry of the permissions known to the platform, grouped by category.
package catalog

import (
	"sync"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
	"accessd/pkg/platform/sentinel"
)

// Catalog holds registered permissions in insertion order. Registration
// happens once at startup; reads afterwards are lock-cheap and the structure
// never shrinks, so no permission referenced by a role can disappear.
type Catalog struct {
	mu    sync.RWMutex
	byID  map[id.PermissionID]models.Permission
	order []id.PermissionID
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{byID: make(map[id.PermissionID]models.Permission)}
}

// Register adds a permission. Registering the identical definition again is
// an idempotent no-op; registering a different definition under an existing
// ID fails with a validation error.
func (c *Catalog) Register(p models.Permission) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byID[p.ID]; ok {
		if existing.Equal(p) {
			return nil
		}
		return dErrors.Newf(dErrors.CodeValidation, "permission %q is already registered with a different definition", p.ID)
	}
	c.byID[p.ID] = p
	c.order = append(c.order, p.ID)
	return nil
}

// Get returns the permission with the given ID.
func (c *Catalog) Get(permID id.PermissionID) (models.Permission, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[permID]
	if !ok {
		return models.Permission{}, sentinel.ErrNotFound
	}
	return p, nil
}

// List returns permissions in insertion order, optionally restricted to one
// category. An empty category returns everything.
func (c *Catalog) List(category string) []models.Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Permission, 0, len(c.order))
	for _, pid := range c.order {
		p := c.byID[pid]
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// NameOf resolves a permission ID to its dot-namespaced name. Used by the
// snapshot builder; authorization checks match on names, not IDs.
func (c *Catalog) NameOf(permID id.PermissionID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[permID]
	if !ok {
		return "", false
	}
	return p.Name, true
}

// Len returns the number of registered permissions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

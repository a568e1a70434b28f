package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
)

const roleKeyPrefix = "authz:role:"

// RedisMirror mirrors the per-role permission sets into Redis so sibling
// replicas and edge gateways can resolve hasPermission without calling the
// primary. The in-process view stays the source of truth; mirroring is
// best-effort and a failure never fails the originating mutation.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror constructs a mirror over an existing Redis client.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

type mirroredRole struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Version     int64    `json:"version"`
}

// Publish writes the role's resolved permission names.
func (m *RedisMirror) Publish(ctx context.Context, role *models.Role, resolver NameResolver) error {
	names := make([]string, 0, len(role.Permissions))
	for pid := range role.Permissions {
		if name, ok := resolver.NameOf(pid); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	payload, err := json.Marshal(mirroredRole{
		Name:        role.Name,
		Permissions: names,
		Version:     role.Version,
	})
	if err != nil {
		return fmt.Errorf("encode mirrored role: %w", err)
	}
	return m.client.Set(ctx, roleKey(role.ID), payload, 0).Err()
}

// Remove drops a deleted role from the mirror.
func (m *RedisMirror) Remove(ctx context.Context, roleID id.RoleID) error {
	return m.client.Del(ctx, roleKey(roleID)).Err()
}

func roleKey(roleID id.RoleID) string {
	return roleKeyPrefix + roleID.String()
}

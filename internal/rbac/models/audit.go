package models

import (
	"time"

	"github.com/google/uuid"

	id "accessd/pkg/domain"
)

// AuditAction identifies the kind of binding change an entry records.
type AuditAction string

const (
	AuditActionGrant  AuditAction = "grant"
	AuditActionRevoke AuditAction = "revoke"
)

// AuditEntry is an immutable record of a single grant/revoke event. Entries
// are appended by the binding service in the same transaction as the role
// mutation and are never updated or deleted.
type AuditEntry struct {
	ID           uuid.UUID       `json:"id"`
	RoleID       id.RoleID       `json:"role_id"`
	PermissionID id.PermissionID `json:"permission_id"`
	Action       AuditAction     `json:"action"`
	Actor        string          `json:"actor"`
	Timestamp    time.Time       `json:"timestamp"`
}

// AuditQuery filters the audit trail. Zero-valued fields match everything.
// Results are always ordered by timestamp ascending, ties broken by append
// order.
type AuditQuery struct {
	RoleID id.RoleID
	From   time.Time
	To     time.Time
}

// Matches reports whether the entry satisfies the filter.
func (q AuditQuery) Matches(e AuditEntry) bool {
	if !q.RoleID.IsNil() && e.RoleID != q.RoleID {
		return false
	}
	if !q.From.IsZero() && e.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Timestamp.After(q.To) {
		return false
	}
	return true
}

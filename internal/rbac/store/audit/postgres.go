package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	txcontext "accessd/pkg/platform/tx"
)

// PostgresStore persists audit entries in PostgreSQL. Append participates in
// a caller-provided transaction when one travels in the context, which is how
// a binding mutation and its audit entry commit as one unit.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an audit entry. Entries are never updated or deleted.
func (s *PostgresStore) Append(ctx context.Context, entry models.AuditEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO role_audit_entries (id, role_id, permission_id, action, actor, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ID, uuid.UUID(entry.RoleID), string(entry.PermissionID),
		string(entry.Action), entry.Actor, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries ordered by timestamp ascending, ties broken
// by append order (seq).
func (s *PostgresStore) Query(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, error) {
	var roleFilter any
	if !q.RoleID.IsNil() {
		roleFilter = uuid.UUID(q.RoleID)
	}
	var from, to any
	if !q.From.IsZero() {
		from = q.From
	}
	if !q.To.IsZero() {
		to = q.To
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role_id, permission_id, action, actor, timestamp
		FROM role_audit_entries
		WHERE ($1::uuid IS NULL OR role_id = $1)
		  AND ($2::timestamptz IS NULL OR timestamp >= $2)
		  AND ($3::timestamptz IS NULL OR timestamp <= $3)
		ORDER BY timestamp, seq
	`, roleFilter, from, to)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.AuditEntry, 0)
	for rows.Next() {
		var (
			entry    models.AuditEntry
			roleUUID uuid.UUID
			permID   string
			action   string
		)
		if err := rows.Scan(&entry.ID, &roleUUID, &permID, &action, &entry.Actor, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.RoleID = id.RoleID(roleUUID)
		entry.PermissionID = id.PermissionID(permID)
		entry.Action = models.AuditAction(action)
		out = append(out, entry)
	}
	return out, rows.Err()
}

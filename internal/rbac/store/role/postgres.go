package role

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	"accessd/pkg/platform/sentinel"
	txcontext "accessd/pkg/platform/tx"
)

// PostgresStore persists roles in PostgreSQL. Per-role mutation serialization
// uses SELECT ... FOR UPDATE: two concurrent Execute calls on the same role
// queue on the row lock, so neither can observe the other's pre-mutation
// state.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed role store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const roleColumns = `id, name, display_name, description, permission_ids, user_count, is_system, version, created_at, updated_at`

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, role *models.Role) error {
	permIDs, err := marshalPermissionIDs(role)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (`+roleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(role.ID), role.Name, role.DisplayName, role.Description,
		permIDs, role.UserCount, role.IsSystem, role.Version,
		role.CreatedAt, role.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, roleID id.RoleID) (*models.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE id = $1
	`, uuid.UUID(roleID))
	return scanRole(row)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE name = $1
	`, name)
	return scanRole(row)
}

func (s *PostgresStore) List(ctx context.Context, searchTerm string) ([]*models.Role, error) {
	// POSITION sidesteps LIKE pattern escaping for user-supplied terms.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE $1 = ''
		   OR POSITION(LOWER($1) IN LOWER(display_name)) > 0
		   OR POSITION(LOWER($1) IN LOWER(description)) > 0
		ORDER BY seq
	`, searchTerm)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Execute loads the role FOR UPDATE, runs validate then mutate, persists the
// change, and runs commit inside the same transaction (the *sql.Tx travels in
// the context for participating stores, e.g. the audit store). Any error
// rolls everything back; a no-op mutate commits nothing.
func (s *PostgresStore) Execute(
	ctx context.Context,
	roleID id.RoleID,
	validate func(*models.Role) error,
	mutate func(*models.Role) bool,
	commit func(ctx context.Context, updated *models.Role) error,
) (*models.Role, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin role mutation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE id = $1 FOR UPDATE
	`, uuid.UUID(roleID))
	role, err := scanRole(row)
	if err != nil {
		return nil, false, err
	}

	if validate != nil {
		if err := validate(role); err != nil {
			return nil, false, err
		}
	}
	if !mutate(role) {
		return role, false, nil
	}

	permIDs, err := marshalPermissionIDs(role)
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE roles
		SET display_name = $2, description = $3, permission_ids = $4,
		    user_count = $5, version = $6, updated_at = $7
		WHERE id = $1
	`,
		uuid.UUID(role.ID), role.DisplayName, role.Description, permIDs,
		role.UserCount, role.Version, role.UpdatedAt,
	); err != nil {
		return nil, false, fmt.Errorf("update role: %w", err)
	}

	if commit != nil {
		if err := commit(txcontext.WithTx(ctx, tx), role); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit role mutation: %w", err)
	}
	return role, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, roleID id.RoleID, validate func(*models.Role) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin role delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE id = $1 FOR UPDATE
	`, uuid.UUID(roleID))
	role, err := scanRole(row)
	if err != nil {
		return err
	}
	if validate != nil {
		if err := validate(role); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, uuid.UUID(roleID)); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit role delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*models.Role, error) {
	var (
		roleUUID uuid.UUID
		role     models.Role
		permIDs  []byte
	)
	err := row.Scan(
		&roleUUID, &role.Name, &role.DisplayName, &role.Description,
		&permIDs, &role.UserCount, &role.IsSystem, &role.Version,
		&role.CreatedAt, &role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan role: %w", err)
	}
	role.ID = id.RoleID(roleUUID)

	var ids []id.PermissionID
	if err := json.Unmarshal(permIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode permission ids: %w", err)
	}
	role.Permissions = make(map[id.PermissionID]struct{}, len(ids))
	for _, pid := range ids {
		role.Permissions[pid] = struct{}{}
	}
	return &role, nil
}

func marshalPermissionIDs(role *models.Role) ([]byte, error) {
	raw, err := json.Marshal(role.PermissionIDs())
	if err != nil {
		return nil, fmt.Errorf("encode permission ids: %w", err)
	}
	return raw, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

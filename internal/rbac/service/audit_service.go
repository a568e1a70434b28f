package service

import (
	"context"

	"accessd/internal/rbac/models"
	dErrors "accessd/pkg/domain-errors"
)

// GetAuditTrail returns audit entries matching the query, ascending by
// timestamp. All filters are optional; an inverted time range is rejected.
func (s *Service) GetAuditTrail(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, dErrors.New(dErrors.CodeValidation, "audit query range start must not be after its end")
	}
	entries, err := s.auditLog.Query(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit trail")
	}
	return entries, nil
}

// ListPermissions returns registered permissions in catalog order, optionally
// restricted to one category.
func (s *Service) ListPermissions(_ context.Context, category string) []models.Permission {
	return s.catalog.List(category)
}

// Package service orchestrates the rbac engine: role lifecycle, permission
// binding mutations, the audit trail, and authorization queries.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"accessd/internal/rbac/catalog"
	"accessd/internal/rbac/metrics"
	"accessd/internal/rbac/models"
	"accessd/internal/rbac/snapshot"
	id "accessd/pkg/domain"
	"accessd/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RoleStore,AuditStore,UserCounter,StreamPublisher,SnapshotMirror

// RoleStore is the persistence contract for roles. Execute serializes
// mutations per role: validate inspects current state, mutate applies the
// change and reports whether anything changed, and commit runs atomically
// with the change (same transaction in Postgres, before the swap in memory).
type RoleStore interface {
	CreateIfNameAvailable(ctx context.Context, role *models.Role) error
	FindByID(ctx context.Context, roleID id.RoleID) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context, searchTerm string) ([]*models.Role, error)
	Execute(
		ctx context.Context,
		roleID id.RoleID,
		validate func(*models.Role) error,
		mutate func(*models.Role) bool,
		commit func(ctx context.Context, updated *models.Role) error,
	) (*models.Role, bool, error)
	Delete(ctx context.Context, roleID id.RoleID, validate func(*models.Role) error) error
}

// AuditStore is the persistence contract for the append-only audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	Query(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, error)
}

// UserCounter reports how many users hold a role. User-role assignment is
// owned by the external identity service; the engine only consumes counts.
type UserCounter interface {
	CountByRole(ctx context.Context, roleID id.RoleID) (int, error)
}

// StreamPublisher fans committed audit entries out to downstream consumers.
type StreamPublisher interface {
	Publish(ctx context.Context, entry models.AuditEntry) error
}

// SnapshotMirror mirrors per-role permission sets to an external cache.
type SnapshotMirror interface {
	Publish(ctx context.Context, role *models.Role, resolver snapshot.NameResolver) error
	Remove(ctx context.Context, roleID id.RoleID) error
}

// Service orchestrates role and binding management over the stores, keeps the
// authorization snapshot current, and records the audit trail.
type Service struct {
	roles    RoleStore
	auditLog AuditStore
	catalog  *catalog.Catalog
	snapshot *snapshot.Publisher

	users   UserCounter
	logger  *slog.Logger
	metrics *metrics.Metrics
	mirror  SnapshotMirror
	stream  StreamPublisher
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithUserCounter(users UserCounter) Option {
	return func(s *Service) {
		s.users = users
	}
}

func WithMirror(mirror SnapshotMirror) Option {
	return func(s *Service) {
		s.mirror = mirror
	}
}

func WithStream(stream StreamPublisher) Option {
	return func(s *Service) {
		s.stream = stream
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(roles RoleStore, auditLog AuditStore, cat *catalog.Catalog, snap *snapshot.Publisher, opts ...Option) *Service {
	s := &Service{
		roles:    roles,
		auditLog: auditLog,
		catalog:  cat,
		snapshot: snap,
		tracer:   noop.NewTracerProvider().Tracer("accessd/rbac"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot exposes the current authorization view.
func (s *Service) Snapshot() *snapshot.View {
	return s.snapshot.Current()
}

func (s *Service) actor(ctx context.Context) string {
	if actor := requestcontext.Actor(ctx); actor != "" {
		return actor
	}
	return "system"
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// publishRole republishes the snapshot with the updated role and mirrors it
// best-effort. Called after every committed mutation.
func (s *Service) publishRole(ctx context.Context, role *models.Role) {
	s.snapshot.Upsert(role, s.catalog)
	if s.metrics != nil {
		s.metrics.SnapshotRolesTracked.Set(float64(s.snapshot.Current().Len()))
	}
	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, role, s.catalog); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "snapshot mirror publish failed",
				"role_id", role.ID, "error", err)
		}
	}
}

func (s *Service) unpublishRole(ctx context.Context, roleID id.RoleID) {
	s.snapshot.Remove(roleID)
	if s.metrics != nil {
		s.metrics.SnapshotRolesTracked.Set(float64(s.snapshot.Current().Len()))
	}
	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, roleID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "snapshot mirror remove failed",
				"role_id", roleID, "error", err)
		}
	}
}

// streamEntry fans a committed audit entry out. Best-effort: the stores
// already hold the durable record.
func (s *Service) streamEntry(ctx context.Context, entry models.AuditEntry) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Publish(ctx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.AuditStreamFailures.Inc()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "audit stream publish failed",
				"entry_id", entry.ID, "error", err)
		}
		return
	}
	if s.metrics != nil {
		s.metrics.AuditEntriesStreamed.Inc()
	}
}

func (s *Service) observeMutation(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRoleMutation(start)
	}
}

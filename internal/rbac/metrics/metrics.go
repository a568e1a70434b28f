package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rbac module.
// Tracks binding mutations, rejected system-role writes, and the latency of
// the authorization check hot path.
type Metrics struct {
	BindingsGranted       prometheus.Counter
	BindingsRevoked       prometheus.Counter
	BindingNoOps          prometheus.Counter
	VersionConflicts      prometheus.Counter
	SystemRoleRejections  prometheus.Counter
	AuthzCheckDuration    prometheus.Histogram
	RoleMutationDuration  prometheus.Histogram
	SnapshotRolesTracked  prometheus.Gauge
	AuditEntriesStreamed  prometheus.Counter
	AuditStreamFailures   prometheus.Counter
}

// New creates a Metrics instance with all rbac module metrics registered.
func New() *Metrics {
	return &Metrics{
		BindingsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_bindings_granted_total",
			Help: "Total number of permission grants applied to roles",
		}),
		BindingsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_bindings_revoked_total",
			Help: "Total number of permission revocations applied to roles",
		}),
		BindingNoOps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_binding_noops_total",
			Help: "Total number of binding mutations that were already satisfied",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_role_version_conflicts_total",
			Help: "Total number of role metadata updates rejected by the optimistic version check",
		}),
		SystemRoleRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_system_role_rejections_total",
			Help: "Total number of mutation attempts rejected because the role is a system role",
		}),
		AuthzCheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accessd_authz_check_duration_seconds",
			Help:    "Duration of authorization checks (request hot path)",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
		RoleMutationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accessd_role_mutation_duration_seconds",
			Help:    "Duration of role create/update/delete and binding mutations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SnapshotRolesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "accessd_snapshot_roles",
			Help: "Number of roles in the published authorization snapshot",
		}),
		AuditEntriesStreamed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_audit_entries_streamed_total",
			Help: "Total number of audit entries published to the stream",
		}),
		AuditStreamFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessd_audit_stream_failures_total",
			Help: "Total number of audit entries that failed to publish to the stream",
		}),
	}
}

// ObserveAuthzCheck records the duration of one authorization check.
// Call with time.Now() at the start of the check.
func (m *Metrics) ObserveAuthzCheck(start time.Time) {
	m.AuthzCheckDuration.Observe(time.Since(start).Seconds())
}

// ObserveRoleMutation records the duration of one role mutation.
func (m *Metrics) ObserveRoleMutation(start time.Time) {
	m.RoleMutationDuration.Observe(time.Since(start).Seconds())
}

// Package metrics exposes Prometheus collectors for the lock and document
// subsystems.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireTotal counts successful lock acquisitions and renewals.
	AcquireTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantt_lock_acquire_total",
		Help: "Total number of successful lock acquisitions",
	})
	// ConflictTotal counts acquisitions rejected because another user holds a live lease.
	ConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantt_lock_conflict_total",
		Help: "Total number of lock acquisitions rejected with a conflict",
	})
	// HeartbeatTotal counts accepted heartbeat renewals.
	HeartbeatTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantt_lock_heartbeat_total",
		Help: "Total number of accepted lock heartbeats",
	})
	// SweepRemovedTotal counts leases removed by the expiry sweep.
	SweepRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantt_lock_sweep_removed_total",
		Help: "Total number of expired leases removed by the sweep",
	})
	// SaveTotal counts accepted document writes.
	SaveTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantt_document_save_total",
		Help: "Total number of accepted document writes",
	})
	// RevisionMismatchTotal counts saves rejected by the revision check.
	RevisionMismatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantt_document_revision_mismatch_total",
		Help: "Total number of saves rejected with a revision mismatch",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the core collectors on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		AcquireTotal,
		ConflictTotal,
		HeartbeatTotal,
		SweepRemovedTotal,
		SaveTotal,
		RevisionMismatchTotal,
	)
}

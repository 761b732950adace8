// Package metrics provides the Prometheus collectors shared across the
// control plane, grounded on the teacher's metrics.New/NewWithRegistry
// pattern but scoped to the DWS domain's business metrics rather than
// generic HTTP/DB metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the control plane registers.
type Metrics struct {
	// Placement & scaling (C7)
	InvocationsTotal  *prometheus.CounterVec
	InvocationErrors  *prometheus.CounterVec
	InvocationLatency *prometheus.HistogramVec
	ColdStartsTotal   *prometheus.CounterVec
	InstancesLive     *prometheus.GaugeVec
	ScaleEventsTotal  *prometheus.CounterVec

	// Reputation (C2)
	ReputationScore *prometheus.GaugeVec
	ViolationsTotal *prometheus.CounterVec

	// Moderation (C3)
	ModerationActionsTotal *prometheus.CounterVec
	ModerationScanDuration prometheus.Histogram

	// Storage (C6)
	UploadsTotal    *prometheus.CounterVec
	DownloadsTotal  *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	PopularityScore *prometheus.GaugeVec

	// Attestation (C1)
	AttestationVerificationsTotal *prometheus.CounterVec

	// Fee collector (C8)
	FeesPendingTotal   *prometheus.GaugeVec
	FeeDepositsTotal   *prometheus.CounterVec
	FeeDepositFailures *prometheus.CounterVec
}

// New creates a Metrics instance registered against the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// letting tests use a private prometheus.NewRegistry() instead of the
// process-global default.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_invocations_total",
			Help: "Total workload invocations routed to an instance.",
		}, []string{"workload_id"}),
		InvocationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_invocation_errors_total",
			Help: "Total workload invocations that errored.",
		}, []string{"workload_id"}),
		InvocationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_invocation_latency_seconds",
			Help:    "Invocation latency as observed by the router.",
			Buckets: prometheus.DefBuckets,
		}, []string{"workload_id"}),
		ColdStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_cold_starts_total",
			Help: "Total cold starts (first request against a not-yet-warm instance).",
		}, []string{"workload_id"}),
		InstancesLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "placement_instances_live",
			Help: "Current live instance count per workload.",
		}, []string{"workload_id"}),
		ScaleEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_scale_events_total",
			Help: "Total scale up/down/zero decisions made by the auto-scaler.",
		}, []string{"workload_id", "direction"}),

		ReputationScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reputation_score",
			Help: "Current total reputation score per address.",
		}, []string{"address"}),
		ViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reputation_violations_total",
			Help: "Total recorded violations by severity.",
		}, []string{"severity"}),

		ModerationActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Total moderation actions taken, by action.",
		}, []string{"action"}),
		ModerationScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moderation_scan_duration_seconds",
			Help:    "Duration of a full moderation scan.",
			Buckets: prometheus.DefBuckets,
		}),

		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_uploads_total",
			Help: "Total uploads by backend and tier.",
		}, []string{"backend", "tier"}),
		DownloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_downloads_total",
			Help: "Total downloads by backend.",
		}, []string{"backend"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storage_backend_latency_seconds",
			Help:    "Backend upload/download latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		PopularityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storage_popularity_score",
			Help: "Current popularity score for tracked content.",
		}, []string{"content_id"}),

		AttestationVerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_verifications_total",
			Help: "Total attestation verification attempts by platform and result.",
		}, []string{"platform", "result"}),

		FeesPendingTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feecollector_pending_total",
			Help: "Current pending fee total per dao/source.",
		}, []string{"dao_id", "source"}),
		FeeDepositsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feecollector_deposits_total",
			Help: "Total successful on-chain fee deposits.",
		}, []string{"dao_id", "source"}),
		FeeDepositFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feecollector_deposit_failures_total",
			Help: "Total failed on-chain fee deposit attempts.",
		}, []string{"dao_id", "source"}),
	}

	collectors := []prometheus.Collector{
		m.InvocationsTotal, m.InvocationErrors, m.InvocationLatency, m.ColdStartsTotal,
		m.InstancesLive, m.ScaleEventsTotal, m.ReputationScore, m.ViolationsTotal,
		m.ModerationActionsTotal, m.ModerationScanDuration, m.UploadsTotal, m.DownloadsTotal,
		m.BackendLatency, m.PopularityScore, m.AttestationVerificationsTotal,
		m.FeesPendingTotal, m.FeeDepositsTotal, m.FeeDepositFailures,
	}
	for _, c := range collectors {
		_ = registerer.Register(c)
	}
	return m
}

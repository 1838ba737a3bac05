// Package metrics exposes Prometheus collectors for governance and waterfall
// activity. The recorder consumes the events surface only, so the core stays
// free of instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignersRegisteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterline_governance_signers_registered_total",
			Help: "Total number of signers registered",
		},
		[]string{"role"},
	)

	SignersDeactivatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waterline_governance_signers_deactivated_total",
			Help: "Total number of signers deactivated",
		},
	)

	ActiveSigners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waterline_governance_active_signers",
			Help: "Number of currently active signers",
		},
	)

	ApprovalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterline_governance_approval_requests_total",
			Help: "Total number of approval requests created",
		},
		[]string{"action"},
	)

	ApprovalResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterline_governance_approval_resolutions_total",
			Help: "Total number of approval requests resolved",
		},
		[]string{"action", "status"},
	)

	RotationStagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterline_governance_rotation_stages_total",
			Help: "Total number of rotation stage transitions",
		},
		[]string{"type", "status"},
	)

	DistributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterline_waterfall_distributions_total",
			Help: "Total number of waterfall distributions executed",
		},
		[]string{"status"},
	)

	DistributedAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waterline_waterfall_distributed_amount_total",
			Help: "Total amount allocated across all distributions",
		},
	)
)

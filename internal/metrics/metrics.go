package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 输入
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_readings_total",
			Help: "Total number of vitals readings evaluated",
		},
		[]string{"status"}, // status: evaluated, invalid, error
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_events_total",
			Help: "Total number of discrete events received",
		},
		[]string{"kind", "status"},
	)

	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_anomaly_findings_total",
			Help: "Total number of anomaly findings by metric and severity",
		},
		[]string{"metric", "severity"},
	)

	// 报警
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_alerts_suppressed_total",
			Help: "Alerts persisted but not dispatched because a related alert is already open",
		},
		[]string{"type"},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_alert_transitions_total",
			Help: "Total number of alert state transitions",
		},
		[]string{"transition", "applied"},
	)

	// 分发
	PermissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_permission_decisions_total",
			Help: "Total number of permission decisions",
		},
		[]string{"category", "allowed"},
	)

	DispatchInstructions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_dispatch_instructions_total",
			Help: "Total number of dispatch instructions handed to the sink",
		},
		[]string{"sink", "status"}, // status: sent, failed
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_dispatch_duration_seconds",
			Help:    "Time spent handing a dispatch plan to the sink",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"sink"},
	)

	EscalationSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_escalation_sweeps_total",
			Help: "Total number of escalation sweeps",
		},
		[]string{"status"},
	)
)

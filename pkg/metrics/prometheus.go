package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isassess_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isassess_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PriorityEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isassess_priority_evaluations_total",
			Help: "Total number of priority evaluations by resulting tier",
		},
		[]string{"priority"},
	)

	AppStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isassess_application_status_transitions_total",
			Help: "Application status changes by new status and source",
		},
		[]string{"status", "source"},
	)

	DeptStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isassess_department_status_changes_total",
			Help: "Department association status changes by new status",
		},
		[]string{"status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isassess_notifications_total",
			Help: "Notification deliveries by result",
		},
		[]string{"event_type", "result"},
	)

	EvidenceUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isassess_evidence_uploads_total",
			Help: "Evidence file uploads by result",
		},
		[]string{"result"},
	)

	ApplicationsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "isassess_applications",
			Help: "Active applications by normalized status",
		},
		[]string{"status"},
	)

	ApplicationsOverdue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "isassess_applications_overdue",
			Help: "Active, incomplete applications past their due date",
		},
	)
)

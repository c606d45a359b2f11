// Package metrics provides Prometheus metrics for the assessment workflow.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// WorkflowMetrics contains the Prometheus metrics of the workflow. All
// Record methods are safe to call on a nil receiver.
type WorkflowMetrics struct {
	TransitionsTotal         *prometheus.CounterVec   // transition attempts by transition and outcome kind
	OperationDuration        *prometheus.HistogramVec // latency by operation
	NotificationsTotal       *prometheus.CounterVec   // notification writes by type and result
	EmailsTotal              *prometheus.CounterVec   // emails by type and result
	PublicationFailures      prometheus.Counter       // approvals whose publication did not commit
	ArchiveUploadsTotal      *prometheus.CounterVec   // archive snapshot uploads by result
	ReconciledTotal          prometheus.Counter       // assessments repaired by reconcile
	ScheduledJobRunsTotal    *prometheus.CounterVec   // scheduler job runs by job and result
	PendingReviewAssessments prometheus.Gauge         // drafts waiting for a reviewer

	registry *prometheus.Registry
}

// NewWorkflowMetrics creates the workflow metrics and registers them on
// registry
func NewWorkflowMetrics(registry *prometheus.Registry) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
	}
	return m, nil
}

func (m *WorkflowMetrics) initMetrics() {
	m.TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrt_transitions_total",
			Help: "Total number of workflow transition attempts by transition and outcome",
		},
		[]string{"transition", "outcome"}, // outcome: success or an error kind
	)

	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lrt_operation_duration_seconds",
			Help:    "Time taken by workflow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)

	m.NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrt_notifications_total",
			Help: "Total number of in-app notifications by type and result",
		},
		[]string{"type", "result"},
	)

	m.EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrt_emails_total",
			Help: "Total number of notification emails by type and result",
		},
		[]string{"type", "result"},
	)

	m.PublicationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lrt_publication_failures_total",
			Help: "Total number of approvals whose publication step failed",
		},
	)

	m.ArchiveUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrt_archive_uploads_total",
			Help: "Total number of published snapshot uploads by result",
		},
		[]string{"result"},
	)

	m.ReconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lrt_reconciled_total",
			Help: "Total number of approved assessments repaired by reconcile",
		},
	)

	m.ScheduledJobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrt_scheduled_job_runs_total",
			Help: "Total number of scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	m.PendingReviewAssessments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lrt_pending_review_assessments",
			Help: "Number of assessments waiting for review at the last digest run",
		},
	)
}

// RecordTransition records a transition attempt. outcome is OutcomeSuccess or
// the error kind.
func (m *WorkflowMetrics) RecordTransition(transition, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(transition, outcome).Inc()
	m.OperationDuration.WithLabelValues(transition).Observe(duration.Seconds())
}

// RecordNotification records one in-app notification write
func (m *WorkflowMetrics) RecordNotification(notificationType string, err error) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(notificationType, result(err)).Inc()
}

// RecordEmail records one notification email
func (m *WorkflowMetrics) RecordEmail(notificationType string, err error) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(notificationType, result(err)).Inc()
}

// RecordPublicationFailure records an approval that needs reconciling
func (m *WorkflowMetrics) RecordPublicationFailure() {
	if m == nil {
		return
	}
	m.PublicationFailures.Inc()
}

// RecordArchiveUpload records a snapshot upload
func (m *WorkflowMetrics) RecordArchiveUpload(err error) {
	if m == nil {
		return
	}
	m.ArchiveUploadsTotal.WithLabelValues(result(err)).Inc()
}

// RecordReconciled adds n repaired assessments
func (m *WorkflowMetrics) RecordReconciled(n int) {
	if m == nil {
		return
	}
	m.ReconciledTotal.Add(float64(n))
}

// RecordJobRun records a scheduler job run
func (m *WorkflowMetrics) RecordJobRun(job string, err error) {
	if m == nil {
		return
	}
	m.ScheduledJobRunsTotal.WithLabelValues(job, result(err)).Inc()
}

// SetPendingReview sets the pending review gauge
func (m *WorkflowMetrics) SetPendingReview(n int) {
	if m == nil {
		return
	}
	m.PendingReviewAssessments.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Collect implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Collect(ch chan<- prometheus.Metric) {
	m.TransitionsTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.NotificationsTotal.Collect(ch)
	m.EmailsTotal.Collect(ch)
	m.PublicationFailures.Collect(ch)
	m.ArchiveUploadsTotal.Collect(ch)
	m.ReconciledTotal.Collect(ch)
	m.ScheduledJobRunsTotal.Collect(ch)
	m.PendingReviewAssessments.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.TransitionsTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.NotificationsTotal.Describe(ch)
	m.EmailsTotal.Describe(ch)
	m.PublicationFailures.Describe(ch)
	m.ArchiveUploadsTotal.Describe(ch)
	m.ReconciledTotal.Describe(ch)
	m.ScheduledJobRunsTotal.Describe(ch)
	m.PendingReviewAssessments.Describe(ch)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_workflows_started_total",
			Help: "Total number of case workflows started",
		},
		[]string{"trigger"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_workflows_completed_total",
			Help: "Total number of case workflows completed",
		},
		[]string{"status"},
	)

	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseflow_workflow_duration_seconds",
			Help:    "Case workflow execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Extraction metrics
	ExtractionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_extraction_calls_total",
			Help: "Total extraction service calls",
		},
		[]string{"status"},
	)

	ExtractionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseflow_extraction_latency_seconds",
			Help:    "Extraction service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExtractionDroppedIntents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_extraction_dropped_intents_total",
			Help: "Malformed intent entries dropped during extraction validation",
		},
	)

	// Auth metrics
	AuthOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_auth_outcomes_total",
			Help: "Identity verification outcomes by status and error type",
		},
		[]string{"status", "error_type"},
	)

	AuthAttemptsExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_auth_attempts_exhausted_total",
			Help: "Cases that failed verification after the attempt ceiling",
		},
	)

	// Planner metrics
	ActionsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_actions_planned_total",
			Help: "Actions produced by the planner by type and status",
		},
		[]string{"action_type", "status"},
	)

	// Draft metrics
	DraftMergeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_draft_merge_conflicts_total",
			Help: "Draft merge attempts retried after a write conflict",
		},
	)

	// Review metrics
	ReviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_review_decisions_total",
			Help: "Human review decisions",
		},
		[]string{"decision"},
	)

	ReviewWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseflow_review_wait_seconds",
			Help:    "Time a case spent waiting for a review decision",
			Buckets: []float64{1, 10, 60, 300, 1800, 3600, 14400, 86400},
		},
	)

	// Mail metrics
	MailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_mails_sent_total",
			Help: "Outbound mails by draft type and outcome",
		},
		[]string{"draft_type", "status"},
	)

	MailsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_mails_ingested_total",
			Help: "Inbound mails picked up by the poller",
		},
	)
)

// RecordWorkflowCompletion tracks one finished case workflow.
func RecordWorkflowCompletion(status string, durationSeconds float64) {
	WorkflowsCompleted.WithLabelValues(status).Inc()
	WorkflowDuration.Observe(durationSeconds)
}

// RecordAuthOutcome tracks one verification pass.
func RecordAuthOutcome(status, errorType string) {
	AuthOutcomes.WithLabelValues(status, errorType).Inc()
}

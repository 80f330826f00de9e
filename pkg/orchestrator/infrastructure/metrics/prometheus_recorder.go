// Package metrics provides the Prometheus and OpenTelemetry backends of the
// observability ports defined in core/metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	coremetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	executionDurationSeconds *prometheus.HistogramVec
	executionStatusCounter   *prometheus.CounterVec
	jobDurationSeconds       *prometheus.HistogramVec
	jobStatusCounter         *prometheus.CounterVec
	jobsRunning              *prometheus.GaugeVec
	checkpointCounter        *prometheus.CounterVec
	backfillDateCounter      *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		executionDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orch_execution_duration_seconds",
			Help:    "Duration of pipeline executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"execution_name", "status"}),
		executionStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orch_execution_status_total",
			Help: "Total number of pipeline executions by final status.",
		}, []string{"execution_name", "status"}),
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orch_job_duration_seconds",
			Help:    "Duration of job handler invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"execution_name", "job_type", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orch_job_status_total",
			Help: "Total number of settled jobs by terminal status.",
		}, []string{"execution_name", "job_type", "status"}),
		jobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orch_jobs_running",
			Help: "Number of jobs currently dispatched to handlers.",
		}, []string{"execution_name"}),
		checkpointCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orch_checkpoint_total",
			Help: "Total number of checkpoints taken by trigger.",
		}, []string{"trigger"}),
		backfillDateCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orch_backfill_date_total",
			Help: "Total number of processed backfill dates by outcome.",
		}, []string{"template_name", "outcome"}),
	}

	registry.MustRegister(r.executionDurationSeconds)
	registry.MustRegister(r.executionStatusCounter)
	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.jobsRunning)
	registry.MustRegister(r.checkpointCounter)
	registry.MustRegister(r.backfillDateCounter)

	return r
}

// GetRegistry returns the Prometheus registry for exposition.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordExecutionStart records the start of an Execution.
func (r *PrometheusRecorder) RecordExecutionStart(ctx context.Context, execution *model.Execution) {
	logger.Debugf("Metrics: Execution '%s' started.", execution.Name)
}

// RecordExecutionEnd records the end of an Execution with its final status.
func (r *PrometheusRecorder) RecordExecutionEnd(ctx context.Context, execution *model.Execution) {
	r.executionStatusCounter.WithLabelValues(execution.Name, execution.Status.String()).Inc()
	if execution.CompletedAt == nil {
		return
	}
	duration := execution.CompletedAt.Sub(execution.CreatedAt).Seconds()
	r.executionDurationSeconds.WithLabelValues(execution.Name, execution.Status.String()).Observe(duration)
	logger.Debugf("Metrics: Execution '%s' ended. Duration: %.3fs", execution.Name, duration)
}

// RecordJobStart records a job entering the running state.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, executionName, jobType string) {
	r.jobsRunning.WithLabelValues(executionName).Inc()
}

// RecordJobEnd records a job leaving the running state.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, executionName, jobType string, status model.JobStatus, duration time.Duration) {
	r.jobsRunning.WithLabelValues(executionName).Dec()
	r.jobStatusCounter.WithLabelValues(executionName, jobType, status.String()).Inc()
	r.jobDurationSeconds.WithLabelValues(executionName, jobType, status.String()).Observe(duration.Seconds())
}

// RecordCheckpoint records a checkpoint being taken.
func (r *PrometheusRecorder) RecordCheckpoint(ctx context.Context, trigger model.CheckpointTrigger) {
	r.checkpointCounter.WithLabelValues(string(trigger)).Inc()
}

// RecordBackfillDate records the outcome of one backfill date.
func (r *PrometheusRecorder) RecordBackfillDate(ctx context.Context, templateName string, failed bool) {
	outcome := "completed"
	if failed {
		outcome = "failed"
	}
	r.backfillDateCounter.WithLabelValues(templateName, outcome).Inc()
}

var _ coremetrics.MetricRecorder = (*PrometheusRecorder)(nil)

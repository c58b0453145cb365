package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promNamespace = "evalgrid"

	promTaskSubsystem      = "task"
	promRetrySubsystem     = "retry"
	promTimeoutSubsystem   = "timeout"
	promAdmissionSubsystem = "admission"
	promBudgetSubsystem    = "budget"
	promAggregateSubsystem = "aggregate"
)

type prometheusRec struct {
	// Metrics.
	taskExecutionDuration *prometheus.HistogramVec
	retryRetries          *prometheus.CounterVec
	retryThroughputLimits *prometheus.CounterVec
	timeoutTimeouts       *prometheus.CounterVec
	admissionQueued       *prometheus.CounterVec
	admissionProcessed    *prometheus.CounterVec
	admissionInFlight     *prometheus.GaugeVec
	budgetBalance         *prometheus.GaugeVec
	aggregateFailures     *prometheus.CounterVec
	aggregateMerged       *prometheus.CounterVec

	id  string
	reg prometheus.Registerer
}

// NewPrometheusRecorder returns a new Recorder that knows how to measure
// using Prometheus kind metrics.
func NewPrometheusRecorder(reg prometheus.Registerer) Recorder {
	p := &prometheusRec{
		reg: reg,
	}

	p.registerMetrics()
	return p
}

func (p prometheusRec) WithID(id string) Recorder {
	return &prometheusRec{
		taskExecutionDuration: p.taskExecutionDuration,
		retryRetries:          p.retryRetries,
		retryThroughputLimits: p.retryThroughputLimits,
		timeoutTimeouts:       p.timeoutTimeouts,
		admissionQueued:       p.admissionQueued,
		admissionProcessed:    p.admissionProcessed,
		admissionInFlight:     p.admissionInFlight,
		budgetBalance:         p.budgetBalance,
		aggregateFailures:     p.aggregateFailures,
		aggregateMerged:       p.aggregateMerged,

		id:  id,
		reg: p.reg,
	}
}

func (p *prometheusRec) registerMetrics() {
	p.taskExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promTaskSubsystem,
		Name:      "execution_duration_seconds",
		Help:      "The duration of the task execution in seconds.",
	}, []string{"id", "success"})

	p.retryRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promRetrySubsystem,
		Name:      "retries_total",
		Help:      "Total number of task retries made by the retry runner.",
	}, []string{"id"})

	p.retryThroughputLimits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promRetrySubsystem,
		Name:      "throughput_limited_total",
		Help:      "Total number of throughput-limit failures reported by the engine.",
	}, []string{"id"})

	p.timeoutTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promTimeoutSubsystem,
		Name:      "timeouts_total",
		Help:      "Total number of timeouts made by the timeout runner.",
	}, []string{"id"})

	p.admissionQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promAdmissionSubsystem,
		Name:      "queued_total",
		Help:      "Total number of tasks that asked for an admission slot.",
	}, []string{"id"})

	p.admissionProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promAdmissionSubsystem,
		Name:      "processed_total",
		Help:      "Total number of tasks that obtained an admission slot.",
	}, []string{"id"})

	p.admissionInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promAdmissionSubsystem,
		Name:      "in_flight",
		Help:      "Number of tasks currently holding an admission slot.",
	}, []string{"id"})

	p.budgetBalance = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promBudgetSubsystem,
		Name:      "balance",
		Help:      "Current balance of the rate budget in units.",
	}, []string{"id"})

	p.aggregateFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promAggregateSubsystem,
		Name:      "task_failures_total",
		Help:      "Total number of tasks that reached a fatal state.",
	}, []string{"id"})

	p.aggregateMerged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promAggregateSubsystem,
		Name:      "results_merged_total",
		Help:      "Total number of results merged into the result set.",
	}, []string{"id"})

	p.reg.MustRegister(p.taskExecutionDuration,
		p.retryRetries,
		p.retryThroughputLimits,
		p.timeoutTimeouts,
		p.admissionQueued,
		p.admissionProcessed,
		p.admissionInFlight,
		p.budgetBalance,
		p.aggregateFailures,
		p.aggregateMerged,
	)
}

func (p prometheusRec) ObserveTaskExecution(start time.Time, success bool) {
	secs := time.Since(start).Seconds()
	p.taskExecutionDuration.WithLabelValues(p.id, fmt.Sprintf("%t", success)).Observe(secs)
}

func (p prometheusRec) IncRetry() {
	p.retryRetries.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncThroughputLimited() {
	p.retryThroughputLimits.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncTimeout() {
	p.timeoutTimeouts.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncAdmissionQueued() {
	p.admissionQueued.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncAdmissionProcessed() {
	p.admissionProcessed.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) SetAdmissionInFlight(n int) {
	p.admissionInFlight.WithLabelValues(p.id).Set(float64(n))
}

func (p prometheusRec) SetBudgetBalance(balance float64) {
	p.budgetBalance.WithLabelValues(p.id).Set(balance)
}

func (p prometheusRec) IncTaskFailure() {
	p.aggregateFailures.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) AddResultsMerged(n int) {
	p.aggregateMerged.WithLabelValues(p.id).Add(float64(n))
}

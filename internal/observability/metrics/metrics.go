package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the classification pipeline.
type PipelineMetrics struct {
	webhookTotal     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	eventErrors      prometheus.Counter
	sweepTransitions prometheus.Counter
	processLatency   *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "closermetrix",
			Subsystem: "pipeline",
			Name:      "webhook_total",
			Help:      "Total inbound webhook deliveries",
		}, []string{"kind", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "closermetrix",
			Subsystem: "pipeline",
			Name:      "attendance_transitions_total",
			Help:      "Total attendance state transitions",
		}, []string{"to_state", "source"}),
		eventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closermetrix",
			Subsystem: "pipeline",
			Name:      "event_errors_total",
			Help:      "Total per-event processing failures",
		}),
		sweepTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closermetrix",
			Subsystem: "pipeline",
			Name:      "sweep_transitions_total",
			Help:      "Total transitions applied by the timeout sweeper",
		}),
		processLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "closermetrix",
			Subsystem: "pipeline",
			Name:      "job_latency_seconds",
			Help:      "Latency of queued job processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.transitionsTotal, m.eventErrors, m.sweepTransitions, m.processLatency)
	return m
}

func (m *PipelineMetrics) ObserveWebhook(kind, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(kind, status).Inc()
}

func (m *PipelineMetrics) ObserveTransition(toState, source string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(toState, source).Inc()
}

func (m *PipelineMetrics) ObserveEventError() {
	if m == nil {
		return
	}
	m.eventErrors.Inc()
}

func (m *PipelineMetrics) ObserveSweepTransitions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepTransitions.Add(float64(n))
}

func (m *PipelineMetrics) ObserveJobLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.processLatency.WithLabelValues(kind).Observe(seconds)
}

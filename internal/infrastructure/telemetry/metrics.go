package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the risk-assessment counters and histograms exported by
// the process.
type Metrics struct {
	assessmentsTotal   *prometheus.CounterVec
	policyRejections   *prometheus.CounterVec
	ruleFaults         *prometheus.CounterVec
	auditWriteFailures prometheus.Counter
	assessmentDuration prometheus.Histogram
}

// NewMetrics registers the risk metric set with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		assessmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helixpay",
				Subsystem: "risk",
				Name:      "assessments_total",
				Help:      "Total number of completed risk assessments",
			},
			[]string{"business_type", "level"},
		),
		policyRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helixpay",
				Subsystem: "risk",
				Name:      "policy_rejections_total",
				Help:      "Payments rejected at the policy gate",
			},
			[]string{"business_type", "check"},
		),
		ruleFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helixpay",
				Subsystem: "risk",
				Name:      "rule_faults_total",
				Help:      "Rule predicates that failed during evaluation",
			},
			[]string{"rule"},
		),
		auditWriteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "helixpay",
				Subsystem: "risk",
				Name:      "audit_write_failures_total",
				Help:      "Assessment audit records dropped after write failure",
			},
		),
		assessmentDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "helixpay",
				Subsystem: "risk",
				Name:      "assessment_duration_seconds",
				Help:      "End-to-end risk assessment latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100μs to ~6.5s
			},
		),
	}
}

func (m *Metrics) RecordAssessment(businessType, level string, elapsed time.Duration) {
	m.assessmentsTotal.WithLabelValues(businessType, level).Inc()
	m.assessmentDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordPolicyRejection(businessType, check string) {
	m.policyRejections.WithLabelValues(businessType, check).Inc()
}

func (m *Metrics) RecordRuleFault(rule string) {
	m.ruleFaults.WithLabelValues(rule).Inc()
}

func (m *Metrics) RecordAuditWriteFailure() {
	m.auditWriteFailures.Inc()
}

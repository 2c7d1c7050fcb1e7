package scoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type judgeOutcome string

const (
	judgeOutcomeOK       judgeOutcome = "ok"
	judgeOutcomeRepaired judgeOutcome = "repaired"
	judgeOutcomeFallback judgeOutcome = "fallback"
)

// Metrics exposes Prometheus collectors reporting judge and recompute
// activity.
type Metrics struct {
	judgeCalls        *prometheus.CounterVec
	judgeLatency      prometheus.Histogram
	recomputeDuration prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. Created once to avoid duplicate
// registration panics when multiple engines are instantiated.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers needing unique metric names (for example in tests) should supply a
// fresh registry. Registration errors panic, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	judgeCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medscore",
			Subsystem: "judge",
			Name:      "calls_total",
			Help:      "Judge evaluations by outcome (ok, repaired, fallback).",
		},
		[]string{"outcome"},
	)
	judgeLatency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "medscore",
			Subsystem: "judge",
			Name:      "call_duration_seconds",
			Help:      "Duration of a single judge evaluation.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	recomputeDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "medscore",
			Subsystem: "engine",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of a full transcript replay.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	reg.MustRegister(judgeCalls, judgeLatency, recomputeDuration)
	return &Metrics{
		judgeCalls:        judgeCalls,
		judgeLatency:      judgeLatency,
		recomputeDuration: recomputeDuration,
	}
}

func (m *Metrics) observeJudgeCall(outcome judgeOutcome, d time.Duration) {
	if m == nil {
		return
	}
	m.judgeCalls.WithLabelValues(string(outcome)).Inc()
	m.judgeLatency.Observe(d.Seconds())
}

func (m *Metrics) observeRecompute(d time.Duration) {
	if m == nil {
		return
	}
	m.recomputeDuration.Observe(d.Seconds())
}

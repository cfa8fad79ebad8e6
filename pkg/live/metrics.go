package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weft-dev/weft/pkg/weft"
)

// MetricsConfig configures the gateway's Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "weft").
	Namespace string

	// Subsystem is the metrics subsystem (default: "live").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for write propagation duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the gateway's Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "weft",
		Subsystem: "live",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the gateway's Prometheus metrics.
type Metrics struct {
	framesIn       *prometheus.CounterVec
	framesOut      *prometheus.CounterVec
	applyDuration  prometheus.Histogram
	applyErrors    prometheus.Counter
	activeSessions prometheus.Gauge
	subscriptions  prometheus.Gauge
	slowConsumers  prometheus.Counter
}

// NewMetrics registers and returns the gateway metrics. It also registers
// an EngineCollector so the engine counters ship alongside the gateway's.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	m := &Metrics{
		framesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_in_total",
			Help:        "Frames received from clients",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		framesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_out_total",
			Help:        "Frames sent to clients",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "apply_duration_seconds",
			Help:        "Time from accepting a write to finishing its synchronous propagation",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		applyErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "apply_errors_total",
			Help:        "Writes rejected by name or type",
			ConstLabels: config.ConstLabels,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Open WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscriptions",
			Help:        "Live signal subscriptions across all sessions",
			ConstLabels: config.ConstLabels,
		}),

		slowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "slow_consumers_total",
			Help:        "Sessions closed because their send buffer filled",
			ConstLabels: config.ConstLabels,
		}),
	}

	config.Registry.MustRegister(NewEngineCollector(config.Namespace))
	return m
}

// EngineCollector exports the weft engine counters as Prometheus metrics.
// Collect reads weft.ReadStats, so the counters are always current without
// the engine knowing about Prometheus.
type EngineCollector struct {
	signalsCreated *prometheus.Desc
	memosCreated   *prometheus.Desc
	effectsCreated *prometheus.Desc
	effectRuns     *prometheus.Desc
	memoRecomputes *prometheus.Desc
	sets           *prometheus.Desc
	notifications  *prometheus.Desc
}

// NewEngineCollector creates a collector for the engine counters.
func NewEngineCollector(namespace string) *EngineCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "engine", name),
			help, nil, nil,
		)
	}
	return &EngineCollector{
		signalsCreated: desc("signals_created_total", "Signals created since process start"),
		memosCreated:   desc("memos_created_total", "Memos created since process start"),
		effectsCreated: desc("effects_created_total", "Effects created since process start"),
		effectRuns:     desc("effect_runs_total", "Effect body executions"),
		memoRecomputes: desc("memo_recomputes_total", "Memo body executions"),
		sets:           desc("sets_total", "Signal writes, no-ops included"),
		notifications:  desc("notifications_total", "Subscribers dispatched by change propagation"),
	}
}

// Describe implements prometheus.Collector.
func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.signalsCreated
	ch <- c.memosCreated
	ch <- c.effectsCreated
	ch <- c.effectRuns
	ch <- c.memoRecomputes
	ch <- c.sets
	ch <- c.notifications
}

// Collect implements prometheus.Collector.
func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := weft.ReadStats()
	counter := func(desc *prometheus.Desc, v uint64) prometheus.Metric {
		return prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
	ch <- counter(c.signalsCreated, stats.SignalsCreated)
	ch <- counter(c.memosCreated, stats.MemosCreated)
	ch <- counter(c.effectsCreated, stats.EffectsCreated)
	ch <- counter(c.effectRuns, stats.EffectRuns)
	ch <- counter(c.memoRecomputes, stats.MemoRecomputes)
	ch <- counter(c.sets, stats.Sets)
	ch <- counter(c.notifications, stats.Notifications)
}

var _ prometheus.Collector = (*EngineCollector)(nil)

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MenuMetrics tracks settings menu resolution latency and link outcomes.
type MenuMetrics struct {
	resolveDuration *prometheus.HistogramVec
	linkChecks      *prometheus.CounterVec
	inflight        prometheus.Gauge
}

// NewMenuMetrics registers the menu collectors on the default registry.
func NewMenuMetrics(cfg Config) *MenuMetrics {
	return newMenuMetrics(prometheus.DefaultRegisterer, cfg)
}

func newMenuMetrics(registerer prometheus.Registerer, cfg Config) *MenuMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &MenuMetrics{
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "console_settings_menu_resolve_duration_seconds",
			Help:        "Time from entering Loading until every link check settled.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"edition", "outcome"}),
		linkChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "console_settings_menu_link_checks_total",
			Help:        "Per-link permission check results.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "console_settings_menu_resolutions_inflight",
			Help:        "Settings menu resolutions currently in Loading.",
			ConstLabels: constLabels,
		}),
	}

	m.resolveDuration = registerOrExisting(registerer, m.resolveDuration).(*prometheus.HistogramVec)
	m.linkChecks = registerOrExisting(registerer, m.linkChecks).(*prometheus.CounterVec)
	m.inflight = registerOrExisting(registerer, m.inflight).(prometheus.Gauge)
	return m
}

func (m *MenuMetrics) ObserveResolve(edition, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(normalizeLabel(edition), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (m *MenuMetrics) IncLinkCheck(outcome string) {
	if m == nil {
		return
	}
	m.linkChecks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *MenuMetrics) ResolveStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *MenuMetrics) ResolveFinished() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "console"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// registerOrExisting tolerates double registration, which happens when
// several fx apps are built in one test binary.
func registerOrExisting(registerer prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}

package output

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// PrometheusMetrics implements ports.PipelineObserver.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	eventsParsed      prometheus.Counter
	eventsInserted    prometheus.Counter
	eventsDuplicate   prometheus.Counter
	parseErrors       prometheus.Counter
	eventsFiltered    prometheus.Counter
	sinkFailures      *prometheus.CounterVec
	alertsByKind      *prometheus.CounterVec
	alertsByLevel     *prometheus.CounterVec
	rotations         *prometheus.CounterVec
	backups           *prometheus.CounterVec
	bannedAddresses   prometheus.Gauge
	providerFailures  *prometheus.CounterVec
	tickDuration      *prometheus.HistogramVec
	tickErrors        *prometheus.CounterVec
	lastTickTimestamp *prometheus.GaugeVec

	server *http.Server
	mu     sync.Mutex
}

type MetricsConfig struct {
	Addr string
	Path string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr: ":9090",
		Path: "/metrics",
	}
}

// NewPrometheusMetrics registers the collectors on a private registry so
// several instances (tests) never collide.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "authwatch"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &PrometheusMetrics{registry: reg}

	m.eventsParsed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_parsed_total",
		Help:      "Log lines parsed into events",
	})
	m.eventsInserted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_inserted_total",
		Help:      "Events newly stored in the indexed sink",
	})
	m.eventsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_duplicate_total",
		Help:      "Events skipped because they were already stored",
	})
	m.parseErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parse_errors_total",
		Help:      "Log lines rejected by the parser",
	})
	m.eventsFiltered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_filtered_total",
		Help:      "Events dropped by the message denylist",
	})
	m.sinkFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_failures_total",
		Help:      "Failed writes per event sink",
	}, []string{"sink"})
	m.alertsByKind = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_by_kind_total",
		Help:      "Alerts delivered by kind",
	}, []string{"kind"})
	m.alertsByLevel = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_by_level_total",
		Help:      "Alerts delivered by severity level",
	}, []string{"level"})
	m.rotations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rotations_total",
		Help:      "Log rotation attempts by result",
	}, []string{"result"})
	m.backups = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backups_total",
		Help:      "File backups by result",
	}, []string{"result"})
	m.bannedAddresses = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "banned_addresses",
		Help:      "Addresses in the last observed ban list",
	})
	m.providerFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_failures_total",
		Help:      "Failed calls to external providers",
	}, []string{"provider"})
	m.tickDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Time spent in one scheduler tick",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"unit"})
	m.tickErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_errors_total",
		Help:      "Scheduler ticks that ended in an error, by class",
	}, []string{"unit", "class"})
	m.lastTickTimestamp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_tick_timestamp_seconds",
		Help:      "Unix time of the last completed tick",
	}, []string{"unit"})

	return m
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *PrometheusMetrics) ObserveIngest(parsed, inserted, duplicates, parseErrors, filtered int) {
	m.eventsParsed.Add(float64(parsed))
	m.eventsInserted.Add(float64(inserted))
	m.eventsDuplicate.Add(float64(duplicates))
	m.parseErrors.Add(float64(parseErrors))
	m.eventsFiltered.Add(float64(filtered))
}

func (m *PrometheusMetrics) ObserveSinkFailure(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

func (m *PrometheusMetrics) ObserveAlert(alert *domain.Alert) {
	m.alertsByKind.WithLabelValues(string(alert.Kind)).Inc()
	m.alertsByLevel.WithLabelValues(string(alert.Level)).Inc()
}

func (m *PrometheusMetrics) ObserveRotation(result string) {
	m.rotations.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) ObserveBackup(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.backups.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) ObserveBanSet(size int) {
	m.bannedAddresses.Set(float64(size))
}

func (m *PrometheusMetrics) ObserveProviderFailure(provider string) {
	m.providerFailures.WithLabelValues(provider).Inc()
}

func (m *PrometheusMetrics) ObserveTick(unit string, duration time.Duration, err error) {
	m.tickDuration.WithLabelValues(unit).Observe(duration.Seconds())
	m.lastTickTimestamp.WithLabelValues(unit).SetToCurrentTime()
	if err != nil {
		m.tickErrors.WithLabelValues(unit, domain.ErrorClass(err)).Inc()
	}
}

// StartServer serves the registry on config.Path, plus any extra handlers
// (e.g. "/ready"), until StopServer.
func (m *PrometheusMetrics) StartServer(config MetricsConfig, extra map[string]http.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(config.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	for path, h := range extra {
		mux.Handle(path, h)
	}

	m.server = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", config.Addr).Str("path", config.Path).Msg("Starting Prometheus metrics server")
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func (m *PrometheusMetrics) StopServer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}

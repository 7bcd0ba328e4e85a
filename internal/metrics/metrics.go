// Package metrics exposes Prometheus instrumentation for identity
// resolution, sessions, provisioning and schema state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BradenHooton/lantern/internal/database"
	"github.com/BradenHooton/lantern/internal/models"
)

// PoolStatter reports database connection pool usage
type PoolStatter interface {
	Stats() database.PoolStats
}

const namespace = "lantern"

// Collector holds the service's metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer
	factory  promauto.Factory

	resolutions       *prometheus.CounterVec
	untrustedAttempts prometheus.Counter
	sessionLookups    *prometheus.CounterVec
	sessionsReaped    prometheus.Counter
	usersProvisioned  prometheus.Counter
	schemaVersion     prometheus.Gauge
	requestDuration   *prometheus.HistogramVec
}

// New registers the metrics on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		factory:  factory,

		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_resolutions_total",
			Help:      "Requests resolved, by authentication method",
		}, []string{"method"}),

		untrustedAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_untrusted_header_attempts_total",
			Help:      "Requests carrying identity headers from a source outside the whitelist",
		}),

		sessionLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_lookups_total",
			Help:      "Session token lookups, by outcome",
		}, []string{"outcome"}),

		sessionsReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Expired sessions removed by the background reaper",
		}),

		usersProvisioned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_provisioned_total",
			Help:      "Accounts created from trusted proxy identities",
		}),

		schemaVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_version",
			Help:      "Schema version recorded after startup migration",
		}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route pattern and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObservePool exports pool usage gauges, sampled at scrape time
func (c *Collector) ObservePool(pool PoolStatter) {
	if c == nil || pool == nil {
		return
	}

	gauge := func(name, help string, value func(database.PoolStats) int32) {
		c.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(pool.Stats())) })
	}

	gauge("acquired_connections", "Connections currently checked out", func(s database.PoolStats) int32 { return s.Acquired })
	gauge("idle_connections", "Idle connections held by the pool", func(s database.PoolStats) int32 { return s.Idle })
	gauge("total_connections", "Connections open in the pool", func(s database.PoolStats) int32 { return s.Total })
	gauge("max_connections", "Configured pool ceiling", func(s database.PoolStats) int32 { return s.Max })
}

// RecordResolution counts one resolved request
func (c *Collector) RecordResolution(method models.AuthMethod) {
	if c == nil {
		return
	}
	c.resolutions.WithLabelValues(string(method)).Inc()
}

// RecordUntrustedProxyAttempt counts identity headers arriving from an untrusted source
func (c *Collector) RecordUntrustedProxyAttempt() {
	if c == nil {
		return
	}
	c.untrustedAttempts.Inc()
}

// RecordSessionLookup counts one session lookup outcome
func (c *Collector) RecordSessionLookup(outcome string) {
	if c == nil {
		return
	}
	c.sessionLookups.WithLabelValues(outcome).Inc()
}

// RecordSessionsReaped adds n reaped sessions
func (c *Collector) RecordSessionsReaped(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.sessionsReaped.Add(float64(n))
}

// RecordUserProvisioned counts one auto-provisioned account
func (c *Collector) RecordUserProvisioned() {
	if c == nil {
		return
	}
	c.usersProvisioned.Inc()
}

// SetSchemaVersion publishes the stored schema version
func (c *Collector) SetSchemaVersion(version int64) {
	if c == nil {
		return
	}
	c.schemaVersion.Set(float64(version))
}

// Middleware observes request latency labelled by chi route pattern.
// Unmatched routes are grouped to keep label cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

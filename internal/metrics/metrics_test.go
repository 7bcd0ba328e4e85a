package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/lantern/internal/database"
	"github.com/BradenHooton/lantern/internal/models"
)

type fixedPool database.PoolStats

func (p fixedPool) Stats() database.PoolStats { return database.PoolStats(p) }

func TestCollector_Records(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.RecordResolution(models.AuthMethodProxy)
	c.RecordResolution(models.AuthMethodProxy)
	c.RecordResolution(models.AuthMethodNone)
	c.RecordUntrustedProxyAttempt()
	c.RecordSessionLookup("expired")
	c.RecordSessionsReaped(5)
	c.RecordSessionsReaped(0)
	c.RecordUserProvisioned()
	c.SetSchemaVersion(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.resolutions.WithLabelValues("proxy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.untrustedAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionLookups.WithLabelValues("expired")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.sessionsReaped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.usersProvisioned))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.schemaVersion))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.RecordResolution(models.AuthMethodSession)
		c.RecordUntrustedProxyAttempt()
		c.RecordSessionLookup("found")
		c.RecordSessionsReaped(1)
		c.RecordUserProvisioned()
		c.SetSchemaVersion(1)
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, c.Middleware(next))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	c := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1, testutil.CollectAndCount(c.requestDuration))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lantern_http_request_duration_seconds_count{method="GET",route="/users/{id}",status="418"} 1`)
}

func TestCollector_ObservePool(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObservePool(fixedPool{Acquired: 3, Idle: 2, Total: 5, Max: 25})

	expected := `
# HELP lantern_db_pool_acquired_connections Connections currently checked out
# TYPE lantern_db_pool_acquired_connections gauge
lantern_db_pool_acquired_connections 3
# HELP lantern_db_pool_max_connections Configured pool ceiling
# TYPE lantern_db_pool_max_connections gauge
lantern_db_pool_max_connections 25
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"lantern_db_pool_acquired_connections", "lantern_db_pool_max_connections")
	assert.NoError(t, err)

	var nilCollector *Collector
	nilCollector.ObservePool(fixedPool{})
}

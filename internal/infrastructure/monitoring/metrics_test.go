package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolated(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordCall("tracker", OutcomeSuccess, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CallsTotal.WithLabelValues("tracker", OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CallsTotal.WithLabelValues("tracker", OutcomeSuccess)))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordCall("tracker", OutcomeSuccess, time.Millisecond)
	m.RecordCall("tracker", OutcomeHTTPError, time.Millisecond)
	m.RecordCall("proxy", OutcomeNetwork, time.Millisecond)
	m.RecordHTTPRequest("GET", "/status", "200", time.Millisecond)
	m.RecordHTTPRequest("POST", "/cookies", "400", time.Millisecond)
	m.IncWSConnections()

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Calls["tracker"])
	assert.Equal(t, int64(1), s.CallFailures["tracker"])
	assert.Equal(t, int64(1), s.CallFailures["proxy"])
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.Equal(t, int64(1), s.Connections)

	// snapshot is a copy
	s.Calls["tracker"] = 100
	assert.Equal(t, int64(2), m.Snapshot().Calls["tracker"])
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/health", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bridge_http_requests_total")
	assert.Contains(t, w.Body.String(), "bridge_uptime_seconds")
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	timer := NewTimer(m, "docstore")
	timer.Stop(OutcomeCircuit)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("docstore", OutcomeCircuit)))

	// nil metrics is tolerated
	NewTimer(nil, "docstore").Stop(OutcomeSuccess)
}

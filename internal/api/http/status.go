package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/executor"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// StatusResponse is everything the status popup reads from the executor.
type StatusResponse struct {
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Tracker   TrackerStatus     `json:"tracker"`
	Docstore  DocstoreStatus    `json:"docstore"`
	Proxy     ProxyStatus       `json:"proxy"`
	Breakers  map[string]string `json:"breakers"`
	Summary   MetricsSummary    `json:"summary"`
}

// TrackerStatus describes the tracker side.
type TrackerStatus struct {
	URL      string `json:"url,omitempty"`
	LastCall string `json:"last_call,omitempty"`
}

// DocstoreStatus describes the document store side.
type DocstoreStatus struct {
	BaseURL      string `json:"base_url"`
	CookieDomain string `json:"cookie_domain"`
	Cookies      int    `json:"cookies"`
	LastCall     string `json:"last_call,omitempty"`
}

// ProxyStatus describes the passthrough proxy.
type ProxyStatus struct {
	LastCall string `json:"last_call,omitempty"`
}

// MetricsSummary provides high-level metrics.
type MetricsSummary struct {
	TotalRequests     int64            `json:"total_requests"`
	ErrorRate         float64          `json:"error_rate"`
	Calls             map[string]int64 `json:"calls"`
	CallFailures      map[string]int64 `json:"call_failures"`
	ActiveConnections int64            `json:"active_connections"`
	UptimeSeconds     float64          `json:"uptime_seconds"`
}

// Status returns last-call timestamps, the tracker URL, the docstore cookie
// count and breaker states.
func (h *Handlers) Status(c *gin.Context) {
	keys := append(executor.LastCallKeys(), TrackerURLKey)
	values, err := h.store.GetMany(keys...)
	if err != nil {
		h.log.Error("Failed to read status keys", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read state"})
		return
	}

	cookies, err := h.store.AllCookies(h.opts.CookieDomain)
	if err != nil {
		h.log.Error("Failed to read docstore cookies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cookies"})
		return
	}

	trackerURL := values[TrackerURLKey]
	if trackerURL == "" {
		trackerURL = h.opts.TrackerURL
	}

	c.JSON(http.StatusOK, StatusResponse{
		Version:   h.opts.Version,
		Timestamp: time.Now().UTC(),
		Tracker: TrackerStatus{
			URL:      trackerURL,
			LastCall: values[executor.LastCallKey(types.ServiceTracker)],
		},
		Docstore: DocstoreStatus{
			BaseURL:      h.opts.DocstoreBaseURL,
			CookieDomain: h.opts.CookieDomain,
			Cookies:      len(cookies),
			LastCall:     values[executor.LastCallKey(types.ServiceDocstore)],
		},
		Proxy: ProxyStatus{
			LastCall: values[executor.LastCallKey(types.ServiceProxy)],
		},
		Breakers: h.executor.Breakers(),
		Summary:  h.summary(),
	})
}

func (h *Handlers) summary() MetricsSummary {
	if h.metrics == nil {
		return MetricsSummary{}
	}
	snapshot := h.metrics.Snapshot()

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	return MetricsSummary{
		TotalRequests:     snapshot.TotalRequests,
		ErrorRate:         errorRate,
		Calls:             snapshot.Calls,
		CallFailures:      snapshot.CallFailures,
		ActiveConnections: snapshot.Connections,
		UptimeSeconds:     snapshot.UptimeSeconds,
	}
}

// TestConnection runs the popup's connection test for one service: the
// tracker's current user, or the docstore site's lists. A successful tracker
// test remembers the URL for Status.
func (h *Handlers) TestConnection(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	var env types.Envelope
	switch types.Service(c.Param("service")) {
	case types.ServiceTracker:
		base := req.URL
		if base == "" {
			base = h.opts.TrackerURL
		}
		if base == "" {
			badRequest(c, "tracker url required")
			return
		}
		env = h.executor.Tracker(c.Request.Context(), types.TrackerRequest{
			URL:    trimSlash(base) + "/rest/api/2/myself",
			Method: http.MethodGet,
		})
		if env.Success {
			if err := h.store.Set(TrackerURLKey, trimSlash(base)); err != nil {
				h.log.Warn("Failed to remember tracker url", zap.Error(err))
			}
		}
	case types.ServiceDocstore:
		env = h.executor.Docstore(c.Request.Context(), types.DocstoreRequest{
			Endpoint: h.opts.DocstoreSite + "/_api/web/lists",
			Method:   http.MethodGet,
		})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service"})
		return
	}

	c.JSON(http.StatusOK, env)
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}

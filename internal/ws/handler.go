package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/api/middleware"
	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/runtime"
)

// Handler manages runtime WebSocket connections.
type Handler struct {
	runtime  runtime.Handler
	log      *logging.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	// ctx ends every connection on Close; hijacked connections outlive
	// http.Server.Shutdown otherwise.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewHandler creates a WebSocket handler serving h.
func NewHandler(h runtime.Handler, allowedOrigins []string, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	log = logging.OrNop(log).For(logging.ContextServer)
	return &Handler{
		runtime: h,
		log:     log,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if middleware.MatchOrigin(origin, allowedOrigins) {
					return true
				}
				log.Warn("Rejected runtime connection", zap.String("origin", origin))
				return false
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// HandleConnection upgrades the request and serves runtime frames until the
// peer disconnects or the handler is closed.
func (h *Handler) HandleConnection(c *gin.Context) {
	if h.ctx.Err() != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	remote := c.ClientIP()
	h.log.Info("Runtime connection opened", zap.String("remote", remote))
	runtime.ServeConn(h.ctx, conn, h.runtime, h.log, h.metrics)
	h.log.Info("Runtime connection closed", zap.String("remote", remote))
}

// Close ends every open connection and waits for their in-flight requests.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

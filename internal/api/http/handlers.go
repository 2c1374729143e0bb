package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/storage"
)

// TrackerURLKey stores the tracker URL of the last successful connection test.
const TrackerURLKey = "tracker_url"

// Store is the persistent state the handlers read and seed.
type Store interface {
	Set(key, value string) error
	GetMany(keys ...string) (map[string]string, error)
	AllCookies(domain string) ([]storage.Cookie, error)
	PutCookies(cookies ...storage.Cookie) error
	RemoveCookie(domain, path, name string) error
	StoreResponseCookies(u *url.URL, cookies []*http.Cookie) error
}

// Executor runs connection tests and reports breaker state.
type Executor interface {
	Tracker(ctx context.Context, req types.TrackerRequest) types.Envelope
	Docstore(ctx context.Context, req types.DocstoreRequest) types.Envelope
	Breakers() map[string]string
}

// Options configures the handlers.
type Options struct {
	Version         string
	TrackerURL      string
	DocstoreBaseURL string
	DocstoreSite    string
	CookieDomain    string
}

// Handlers serves the executor's HTTP API.
type Handlers struct {
	store    Store
	executor Executor
	metrics  *monitoring.Metrics
	log      *logging.Logger
	opts     Options
}

// NewHandlers creates handlers.
func NewHandlers(store Store, executor Executor, metrics *monitoring.Metrics, log *logging.Logger, opts Options) *Handlers {
	return &Handlers{
		store:    store,
		executor: executor,
		metrics:  metrics,
		log:      logging.OrNop(log).For(logging.ContextServer),
		opts:     opts,
	}
}

// Register mounts every handler on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)

	router.POST("/test/:service", h.TestConnection)

	router.GET("/cookies", h.ListCookies)
	router.POST("/cookies", h.SetCookies)
	router.POST("/cookies/import", h.ImportCookies)
	router.DELETE("/cookies", h.DeleteCookie)
}

// Root describes the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "sprintbridge-executor",
		"version": h.opts.Version,
	})
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/infrastructure/resilience"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// ClientConfig configures the outbound HTTP client.
type ClientConfig struct {
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64
	UserAgent         string
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// DefaultClientConfig returns the client configuration used when none is given.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         30 * time.Second,
		UserAgent:       "SprintBridge/2.0.3",
		BreakerFailures: 10,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client wraps resty with rate limiting and one circuit breaker per service.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
}

// NewClient creates the executor HTTP client.
func NewClient(cfg ClientConfig, log *logging.Logger, metrics *monitoring.Metrics) *Client {
	log = logging.OrNop(log)

	// Pooled transport from the retryable client; retries are resty's job
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetCookieJar(nil).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetLogger(log.Sugar()).
		SetTransport(retryClient.HTTPClient.Transport)
	if cfg.UserAgent != "" {
		restyClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	failures := cfg.BreakerFailures
	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if metrics != nil {
				metrics.RecordBreakerChange(breakerService(name), to.String())
			}
		},
	})

	return &Client{
		resty:    restyClient,
		limiter:  limiter,
		breakers: breakers,
	}
}

// Request creates a new request once the rate limiter admits it.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return c.resty.R().SetContext(ctx), nil
}

// Execute sends r through the breaker of service and target host. Only
// transport failures count against the breaker; any HTTP status is a
// completed call.
func (c *Client) Execute(service types.Service, r *resty.Request, method, target string) (*resty.Response, error) {
	host := targetHost(target)
	resp, err := resilience.Do(c.breakers.Get(BreakerName(service, host)), func() (*resty.Response, error) {
		return r.Execute(method, target)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, &BreakerOpenError{Service: service, Host: host, cause: err}
	}
	return resp, err
}

// BreakerName names the breaker guarding host for service. Calls whose
// target has no host share the service-wide breaker.
func BreakerName(service types.Service, host string) string {
	if host == "" {
		return string(service)
	}
	return string(service) + "|" + host
}

// breakerService returns the service part of a breaker name.
func breakerService(name string) string {
	service, _, _ := strings.Cut(name, "|")
	return service
}

func targetHost(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// BreakerOpenError is returned when a breaker rejects a call.
type BreakerOpenError struct {
	Service types.Service
	Host    string
	cause   error
}

func (e *BreakerOpenError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("%s: %s circuit breaker open", types.MsgNetworkError, e.Service)
	}
	return fmt.Sprintf("%s: %s circuit breaker open for %s", types.MsgNetworkError, e.Service, e.Host)
}

func (e *BreakerOpenError) Unwrap() error {
	return e.cause
}

// BreakerStates returns the breaker state of every service called so far.
func (c *Client) BreakerStates() map[string]string {
	states := c.breakers.States()
	out := make(map[string]string, len(states))
	for name, state := range states {
		out[name] = state.String()
	}
	return out
}

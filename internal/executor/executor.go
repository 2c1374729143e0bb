package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/infrastructure/tracing"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/storage"
)

// Store is the executor's view of persistent state. Cookies are only read.
type Store interface {
	Set(key, value string) error
	AllCookies(domain string) ([]storage.Cookie, error)
	CookiesForURL(u *url.URL) ([]storage.Cookie, error)
}

// Config configures an Executor.
type Config struct {
	Client          ClientConfig
	DocstoreBaseURL string
	CookieDomain    string
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Client:          DefaultClientConfig(),
		DocstoreBaseURL: "https://globaltelko.sharepoint.com",
		CookieDomain:    ".sharepoint.com",
	}
}

// Executor performs tracker, docstore and proxy calls.
type Executor struct {
	cfg     Config
	client  *Client
	store   Store
	log     *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer runs every handled runtime message in a span.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithClock sets the clock used for last-call timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an executor backed by store.
func New(store Store, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrNop(e.log).For(logging.ContextExecutor)
	e.client = NewClient(cfg.Client, e.log, e.metrics)
	return e
}

// Breakers returns the circuit breaker state per service.
func (e *Executor) Breakers() map[string]string {
	return e.client.BreakerStates()
}

// Handle dispatches a runtime message to the matching service.
func (e *Executor) Handle(ctx context.Context, msg types.RuntimeMessage) (env types.Envelope) {
	if e.tracer != nil {
		var span *tracing.Span
		span, ctx = e.tracer.StartSpan(ctx, string(msg.Type))
		defer func() {
			span.SetTag("success", strconv.FormatBool(env.Success))
			if !env.Success {
				span.SetError(errors.New(env.Error))
			}
			e.tracer.Submit(span)
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Executor panic recovered",
				zap.String("type", string(msg.Type)),
				zap.Any("panic", r))
			env = types.Fail(fmt.Sprint(r))
		}
	}()

	service, ok := msg.Type.RuntimeService()
	if !ok {
		e.log.Warn("Unknown message type", zap.String("type", string(msg.Type)))
		return types.Fail(types.MsgUnknownMessageType)
	}

	switch service {
	case types.ServiceTracker:
		var req types.TrackerRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return e.reject(service, err)
		}
		return e.Tracker(ctx, req)
	case types.ServiceDocstore:
		var req types.DocstoreRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return e.reject(service, err)
		}
		return e.Docstore(ctx, req)
	default:
		var req types.ProxyRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return e.reject(service, err)
		}
		return e.Proxy(ctx, req)
	}
}

func decodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return errors.New("missing payload")
	}
	if err := codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (e *Executor) reject(service types.Service, err error) types.Envelope {
	e.log.Warn("Rejected request", zap.String("service", string(service)), zap.Error(err))
	monitoring.NewTimer(e.metrics, string(service)).Stop(monitoring.OutcomeBadRequest)
	return types.FailErr(err)
}

// call is one outbound request in flight.
type call struct {
	service types.Service
	timer   *monitoring.Timer
	log     *logging.Logger
}

func (e *Executor) begin(service types.Service, target string) *call {
	return &call{
		service: service,
		timer:   monitoring.NewTimer(e.metrics, string(service)),
		log:     e.log.With(zap.String("service", string(service)), zap.String("url", target)),
	}
}

// fail logs err and converts it to a failure envelope.
func (c *call) fail(outcome string, err error) types.Envelope {
	c.log.Error("Request failed", zap.String("outcome", outcome), zap.Error(err))
	c.timer.Stop(outcome)
	return types.FailErr(err)
}

// send executes r and maps transport failures to envelopes. A nil envelope
// means resp holds a completed HTTP exchange.
func (e *Executor) send(c *call, r *resty.Request, method, target string) (*resty.Response, *types.Envelope) {
	resp, err := e.client.Execute(c.service, r, method, target)
	if err != nil {
		outcome := monitoring.OutcomeNetwork
		var open *BreakerOpenError
		if errors.As(err, &open) {
			outcome = monitoring.OutcomeCircuit
		} else {
			// Keep a recognizable marker for callers mapping messages to guidance.
			err = fmt.Errorf("%s: %w", types.MsgNetworkError, err)
		}
		env := c.fail(outcome, err)
		return nil, &env
	}
	return resp, nil
}

// checkStatus fails non-2xx responses with "HTTP <status>: <body>".
func (c *call) checkStatus(resp *resty.Response) *types.Envelope {
	if resp.IsSuccess() {
		return nil
	}
	env := c.fail(monitoring.OutcomeHTTPError, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body())))
	return &env
}

// succeed records the last-call timestamp and returns the success envelope.
func (e *Executor) succeed(c *call, env types.Envelope) types.Envelope {
	if err := e.recordLastCall(c.service); err != nil {
		return c.fail(monitoring.OutcomeNetwork, err)
	}
	c.timer.Stop(monitoring.OutcomeSuccess)
	return env
}

// parseJSON decodes a response body. An empty body decodes to nil.
func parseJSON(body []byte) (any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var data any
	if err := codec.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	return data, nil
}

// present reports whether a request body would be sent by fetch: nil, empty
// strings, false and zero are not.
func present(body any) bool {
	switch v := body.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return true
}

// hasWriteBody reports whether method carries a JSON body for tracker and
// docstore calls.
func hasWriteBody(method string) bool {
	return strings.EqualFold(method, "POST") || strings.EqualFold(method, "PUT")
}

package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/runtime"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/window"
)

// Config configures a Relay.
type Config struct {
	ReadyDelay     time.Duration
	ForwardTimeout time.Duration
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		ReadyDelay:     time.Second,
		ForwardTimeout: 5 * time.Minute,
	}
}

// Relay bridges one window and one runtime sender.
type Relay struct {
	win     *window.Window
	sender  runtime.Sender
	cfg     Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	remove  func()
	ready   *time.Timer
	started bool
	stopped bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Relay) { r.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// New creates a relay. Call Start to begin listening.
func New(win *window.Window, sender runtime.Sender, cfg Config, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		win:    win,
		sender: sender,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.OrNop(r.log).For(logging.ContextRelay)
	return r
}

// Start registers the listener and announces readiness.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("relay already started")
	}
	r.started = true
	r.remove = r.win.Listen(r.handle)

	if err := r.announce(); err != nil {
		return err
	}
	r.ready = time.AfterFunc(r.cfg.ReadyDelay, func() {
		if err := r.announce(); err != nil {
			r.log.Debug("Second ready announcement dropped", zap.Error(err))
		}
	})
	return nil
}

// Stop removes the listener, abandons in-flight round trips and waits for
// their goroutines.
func (r *Relay) Stop() {
	r.mu.Lock()
	r.stopped = true
	if r.remove != nil {
		r.remove()
	}
	if r.ready != nil {
		r.ready.Stop()
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Relay) announce() error {
	return r.win.Post(types.Message{Type: types.MessageReady})
}

// handle is the single listener for every window message.
func (r *Relay) handle(msg types.Message) {
	if msg.Source != r.win.ID() {
		return
	}

	switch {
	case msg.Type == types.MessagePing:
		r.post(types.Message{Type: types.MessagePong})
	case msg.Type.IsPageRequest():
		service, ok := msg.Type.PageRequestService()
		if !ok {
			r.log.Warn("Unknown message type", zap.String("type", string(msg.Type)))
			r.reply(msg, msg.Type.ResponseFor(), types.Fail(types.MsgUnknownMessageType))
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stopped {
			return
		}
		r.wg.Add(1)
		go r.forward(service, msg)
	}
}

// forward runs one round trip. The page always receives a response.
func (r *Relay) forward(service types.Service, msg types.Message) {
	defer r.wg.Done()

	env := r.roundTrip(service, msg)
	if r.metrics != nil {
		outcome := monitoring.OutcomeSuccess
		if !env.Success {
			outcome = monitoring.OutcomeNetwork
		}
		r.metrics.RecordRelayForward(string(service), outcome)
	}
	r.reply(msg, types.ResponseToPage(service), env)
}

func (r *Relay) roundTrip(service types.Service, msg types.Message) (env types.Envelope) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Relay round trip panic", zap.String("service", string(service)), zap.Any("panic", p))
			env = types.Fail(fmt.Sprint(p))
		}
	}()

	ctx := r.ctx
	if r.cfg.ForwardTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ForwardTimeout)
		defer cancel()
	}

	env, err := r.sender.Send(ctx, types.RuntimeMessage{
		Type:    types.RuntimeRequest(service),
		Payload: msg.Payload,
	})
	if err != nil {
		r.log.Warn("Runtime round trip failed",
			zap.String("service", string(service)),
			zap.String("request", msg.Correlation().String()),
			zap.Error(err))
		return types.FailErr(err)
	}
	return env
}

func (r *Relay) reply(req types.Message, typ types.MessageType, env types.Envelope) {
	r.post(types.Message{
		Type:       typ,
		InstanceID: req.InstanceID,
		RequestID:  req.RequestID,
		Response:   &env,
	})
}

func (r *Relay) post(msg types.Message) {
	if err := r.win.Post(msg); err != nil {
		r.log.Debug("Dropped relay message", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

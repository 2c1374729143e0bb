package runtime

import (
	"context"
	"errors"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// ErrClosed is returned for sends on, or pending on, a closed channel.
var ErrClosed = errors.New("runtime channel closed")

// Handler answers runtime messages. Implementations never return a Go error;
// faults are failure envelopes.
type Handler interface {
	Handle(ctx context.Context, msg types.RuntimeMessage) types.Envelope
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg types.RuntimeMessage) types.Envelope

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg types.RuntimeMessage) types.Envelope {
	return f(ctx, msg)
}

// Sender delivers one message and waits for its response.
type Sender interface {
	Send(ctx context.Context, msg types.RuntimeMessage) (types.Envelope, error)
}

// Local delivers messages to an in-process handler.
type Local struct {
	handler Handler
	log     *logging.Logger
}

// LocalOption configures a Local sender.
type LocalOption func(*Local)

// WithLocalLogger sets the logger receiving handler panic reports.
func WithLocalLogger(log *logging.Logger) LocalOption {
	return func(l *Local) { l.log = log }
}

// NewLocal creates a sender calling h directly.
func NewLocal(h Handler, opts ...LocalOption) *Local {
	l := &Local{handler: h}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logging.OrNop(l.log).For(logging.ContextRuntime)
	return l
}

// Send runs the handler on its own goroutine. A done ctx abandons the wait;
// the handler sees the same ctx. A panicking handler yields a failure envelope.
func (l *Local) Send(ctx context.Context, msg types.RuntimeMessage) (types.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return types.Envelope{}, err
	}

	done := make(chan types.Envelope, 1)
	go func() {
		done <- handleSafe(ctx, l.handler, msg, l.log)
	}()

	select {
	case env := <-done:
		return env, nil
	case <-ctx.Done():
		return types.Envelope{}, ctx.Err()
	}
}

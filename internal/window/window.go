package window

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// ErrClosed is returned when posting to a closed window.
var ErrClosed = errors.New("window closed")

// Listener receives window messages on the dispatch goroutine. It must not block.
type Listener func(msg types.Message)

type posted struct {
	source string
	data   []byte
}

// Window is one page context's message bus.
type Window struct {
	id  string
	log *logging.Logger

	mu        sync.Mutex
	queue     []posted
	listeners map[uint64]Listener
	nextID    uint64
	closed    bool

	wake chan struct{}
	done chan struct{}
	exit chan struct{}
}

// Option configures a Window.
type Option func(*Window)

// WithID sets the window id instead of a random one.
func WithID(id string) Option {
	return func(w *Window) { w.id = id }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(w *Window) { w.log = log }
}

// New creates a window and starts its dispatch goroutine.
func New(opts ...Option) *Window {
	w := &Window{
		id:        uuid.NewString(),
		listeners: make(map[uint64]Listener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		exit:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logging.OrNop(w.log).With(zap.String("window", w.id))
	go w.dispatch()
	return w
}

// ID returns the window id stamped on messages posted through Post.
func (w *Window) ID() string {
	return w.id
}

// Post enqueues msg as sent by this window. It never blocks on listeners.
func (w *Window) Post(msg types.Message) error {
	return w.Inject(w.id, msg)
}

// Inject enqueues msg as sent by another context, such as a foreign frame.
func (w *Window) Inject(source string, msg types.Message) error {
	data, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to clone message: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.queue = append(w.queue, posted{source: source, data: data})

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Listen registers fn and returns a function removing it. Removal applies
// from the next dispatched message: a listener removed while a message is
// being delivered still receives that message.
func (w *Window) Listen(fn Listener) (remove func()) {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered listeners.
func (w *Window) Listeners() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// Close stops dispatching. Queued messages are dropped.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.queue = nil
	w.mu.Unlock()

	close(w.done)
	<-w.exit
	return nil
}

func (w *Window) dispatch() {
	defer close(w.exit)

	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		for {
			next, ok := w.pop()
			if !ok {
				break
			}
			w.deliver(next)
		}
	}
}

func (w *Window) pop() (posted, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || len(w.queue) == 0 {
		return posted{}, false
	}
	next := w.queue[0]
	w.queue[0] = posted{}
	w.queue = w.queue[1:]
	return next, true
}

// snapshot returns the listeners in registration order.
func (w *Window) snapshot() []Listener {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]uint64, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.listeners[id])
	}
	return out
}

func (w *Window) deliver(p posted) {
	for _, fn := range w.snapshot() {
		var msg types.Message
		if err := codec.Unmarshal(p.data, &msg); err != nil {
			w.log.Error("Failed to decode window message", zap.Error(err))
			return
		}
		msg.Source = p.source
		w.call(fn, msg)
	}
}

func (w *Window) call(fn Listener, msg types.Message) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Window listener panic",
				zap.String("type", string(msg.Type)),
				zap.Any("panic", r))
		}
	}()
	fn(msg)
}

package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// Client is a Sender backed by a WebSocket connection to an executor.
type Client struct {
	conn *websocket.Conn
	log  *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan types.Envelope
	nextID  uint64
	closed  bool

	done chan struct{}
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	log    *logging.Logger
	header http.Header
}

// WithDialLogger sets the client logger.
func WithDialLogger(log *logging.Logger) DialOption {
	return func(o *dialOptions) { o.log = log }
}

// WithDialHeader adds headers to the handshake request.
func WithDialHeader(h http.Header) DialOption {
	return func(o *dialOptions) { o.header = h }
}

// Dial connects to an executor runtime endpoint such as ws://127.0.0.1:8000/runtime.
func Dial(ctx context.Context, url string, opts ...DialOption) (*Client, error) {
	var o dialOptions
	for _, opt := range opts {
		opt(&o)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, o.header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial runtime %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		log:     logging.OrNop(o.log).For(logging.ContextRuntime),
		pending: make(map[uint64]chan types.Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send writes one request frame and waits for the frame with the same id.
func (c *Client) Send(ctx context.Context, msg types.RuntimeMessage) (types.Envelope, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.Envelope{}, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan types.Envelope, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := encodeFrame(Frame{ID: id, Type: msg.Type, Payload: msg.Payload})
	if err != nil {
		c.forget(id)
		return types.Envelope{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return types.Envelope{}, fmt.Errorf("failed to write frame: %w", err)
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return types.Envelope{}, ErrClosed
		}
		return env, nil
	case <-ctx.Done():
		c.forget(id)
		return types.Envelope{}, ctx.Err()
	}
}

// Pending returns the number of requests awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection and fails every pending request.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}

	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.shutdown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Runtime read ended", zap.Error(err))
			}
			return
		}

		frame, err := decodeFrame(data)
		if err != nil || !frame.IsResponse() {
			c.log.Warn("Dropping malformed runtime frame", zap.Error(err))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[frame.ID]
		delete(c.pending, frame.ID)
		c.mu.Unlock()

		if ok {
			ch <- *frame.Response
		}
	}
}

// shutdown marks the client closed and releases every waiter.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	_ = c.conn.Close()
}

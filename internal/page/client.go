package page

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/window"
)

// pending is a one-shot response slot.
type pending struct {
	expect types.MessageType
	ch     chan types.Envelope
}

// Client is the request primitive shared by every page API. It owns the
// correlation counter and a single window listener.
type Client struct {
	win         *window.Window
	instance    string
	seq         atomic.Uint64
	pingTimeout time.Duration
	log         *logging.Logger

	mu       sync.Mutex
	pending  map[uint64]*pending
	pings    map[uint64]chan struct{}
	pingSeq  uint64
	closed   bool
	remove   func()
	ready    chan struct{}
	isReady  bool
}

// NewClient attaches a client to win.
func NewClient(win *window.Window, pingTimeout time.Duration, log *logging.Logger) *Client {
	c := &Client{
		win:         win,
		instance:    uuid.NewString(),
		pingTimeout: pingTimeout,
		log:         logging.OrNop(log).For(logging.ContextPage),
		pending:     make(map[uint64]*pending),
		pings:       make(map[uint64]chan struct{}),
		ready:       make(chan struct{}),
	}
	c.remove = win.Listen(c.handle)
	return c
}

// Instance returns the id namespacing this client's correlation ids.
func (c *Client) Instance() string {
	return c.instance
}

// Call posts one request for service and returns the raw response envelope.
// A done ctx abandons the wait and drops the pending entry.
func (c *Client) Call(ctx context.Context, service types.Service, payload any) (types.Envelope, types.RequestID, error) {
	raw, err := codec.Raw(payload)
	if err != nil {
		return types.Envelope{}, types.RequestID{}, fmt.Errorf("failed to encode %s payload: %w", service, err)
	}

	id := types.RequestID{Instance: c.instance, Seq: c.seq.Add(1)}
	slot := &pending{
		expect: types.ResponseToPage(service),
		ch:     make(chan types.Envelope, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.Envelope{}, id, ErrClosed
	}
	c.pending[id.Seq] = slot
	c.mu.Unlock()

	err = c.win.Post(types.Message{
		Type:       types.RequestFromPage(service),
		InstanceID: id.Instance,
		RequestID:  id.Seq,
		Payload:    raw,
	})
	if err != nil {
		c.drop(id.Seq)
		return types.Envelope{}, id, fmt.Errorf("failed to post %s request: %w", service, err)
	}

	select {
	case env, ok := <-slot.ch:
		if !ok {
			return types.Envelope{}, id, ErrClosed
		}
		return env, id, nil
	case <-ctx.Done():
		c.drop(id.Seq)
		return types.Envelope{}, id, ctx.Err()
	}
}

// Request posts one request and returns the envelope data, or a
// *RequestError for a failure envelope.
func (c *Client) Request(ctx context.Context, service types.Service, payload any) (any, error) {
	env, id, err := c.Call(ctx, service, payload)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, failure(service, id, env)
	}
	return env.Data, nil
}

// Ping posts PING and reports whether PONG arrived within the ping timeout.
// The waiter is removed on either outcome.
func (c *Client) Ping(ctx context.Context) bool {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.pingSeq++
	key := c.pingSeq
	c.pings[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pings, key)
		c.mu.Unlock()
	}()

	if err := c.win.Post(types.Message{Type: types.MessagePing}); err != nil {
		return false
	}

	timer := time.NewTimer(c.pingTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Ready returns a channel closed once the relay has announced itself, by
// READY or by answering a ping. Late subscribers see it already closed.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Pending returns the number of requests awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PingWaiters returns the number of pings awaiting PONG.
func (c *Client) PingWaiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pings)
}

// Close removes the listener and fails every pending request with ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.remove()
	for seq, slot := range c.pending {
		close(slot.ch)
		delete(c.pending, seq)
	}
}

func (c *Client) drop(seq uint64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func (c *Client) markReady() {
	if !c.isReady {
		c.isReady = true
		close(c.ready)
	}
}

// handle is the client's single window listener.
func (c *Client) handle(msg types.Message) {
	if msg.Source != c.win.ID() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case types.MessageReady:
		c.markReady()
		return
	case types.MessagePong:
		c.markReady()
		for _, ch := range c.pings {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		return
	}

	if msg.InstanceID != c.instance {
		return
	}
	slot, ok := c.pending[msg.RequestID]
	if !ok || slot.expect != msg.Type {
		return
	}
	delete(c.pending, msg.RequestID)

	env := types.Fail(types.MsgRequestFailed)
	if msg.Response != nil {
		env = *msg.Response
	} else {
		c.log.Warn("Response without envelope", zap.String("request", msg.Correlation().String()))
	}
	slot.ch <- env
}

package page

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/window"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// stubRelay answers page requests from a test-controlled function.
type stubRelay struct {
	win *window.Window

	mu   sync.Mutex
	seen []types.Message
}

// newStubRelay answers every request with answer(msg) after it returns.
// answer runs on its own goroutine and may block.
func newStubRelay(t *testing.T, win *window.Window, answer func(msg types.Message) []types.Message) *stubRelay {
	t.Helper()
	s := &stubRelay{win: win}
	var wg sync.WaitGroup
	remove := win.Listen(func(msg types.Message) {
		if !msg.Type.IsPageRequest() {
			return
		}
		s.mu.Lock()
		s.seen = append(s.seen, msg)
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, out := range answer(msg) {
				_ = win.Post(out)
			}
		}()
	})
	t.Cleanup(func() {
		remove()
		wg.Wait()
	})
	return s
}

func (s *stubRelay) requests() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.seen...)
}

func respond(req types.Message, env types.Envelope) types.Message {
	return types.Message{
		Type:       req.Type.ResponseFor(),
		InstanceID: req.InstanceID,
		RequestID:  req.RequestID,
		Response:   &env,
	}
}

func echoPayload(req types.Message) []types.Message {
	var payload map[string]any
	_ = json.Unmarshal(req.Payload, &payload)
	return []types.Message{respond(req, types.Succeed(payload))}
}

func newTestWindow(t *testing.T) *window.Window {
	t.Helper()
	w := window.New()
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func newTestClient(t *testing.T, w *window.Window) *Client {
	t.Helper()
	c := NewClient(w, 50*time.Millisecond, nil)
	t.Cleanup(c.Close)
	return c
}

func TestCorrelationIDsAreUniqueAndIncreasing(t *testing.T) {
	w := newTestWindow(t)
	relay := newStubRelay(t, w, echoPayload)
	c := newTestClient(t, w)

	for i := 0; i < 5; i++ {
		_, err := c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "u"})
		require.NoError(t, err)
	}

	reqs := relay.requests()
	require.Len(t, reqs, 5)
	for i, req := range reqs {
		assert.Equal(t, uint64(i+1), req.RequestID)
		assert.Equal(t, c.Instance(), req.InstanceID)
	}
	assert.Equal(t, 0, c.Pending())
}

func TestReversedDeliveryResolvesEachCaller(t *testing.T) {
	w := newTestWindow(t)

	const n = 3
	arrived := make(chan types.Message, n)
	release := make(chan struct{})
	newStubRelay(t, w, func(req types.Message) []types.Message {
		arrived <- req
		<-release
		return nil
	})
	c := newTestClient(t, w)

	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := c.Request(context.Background(), types.ServiceDocstore, types.DocstoreRequest{Endpoint: string(rune('a' + i))})
			if assert.NoError(t, err) {
				results[i] = data
			}
		}(i)
	}

	reqs := make([]types.Message, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, <-arrived)
	}
	close(release)

	// Answer in reverse arrival order.
	for i := n - 1; i >= 0; i-- {
		var payload map[string]any
		require.NoError(t, json.Unmarshal(reqs[i].Payload, &payload))
		require.NoError(t, w.Post(respond(reqs[i], types.Succeed(payload["endpoint"]))))
	}
	wg.Wait()

	assert.Equal(t, []any{"a", "b", "c"}, results)
	assert.Equal(t, 0, c.Pending())
}

func TestResponsesForOtherRequestsNeverFire(t *testing.T) {
	w := newTestWindow(t)
	newStubRelay(t, w, func(req types.Message) []types.Message {
		foreign := respond(req, types.Succeed("other instance"))
		foreign.InstanceID = "someone-else"

		wrongID := respond(req, types.Succeed("other id"))
		wrongID.RequestID = req.RequestID + 100

		wrongTag := respond(req, types.Succeed("other tag"))
		wrongTag.Type = types.ResponseToPage(types.ServiceProxy)

		return []types.Message{foreign, wrongID, wrongTag, respond(req, types.Succeed("mine"))}
	})
	c := newTestClient(t, w)

	data, err := c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "mine", data)
}

func TestForeignSourceResponsesIgnored(t *testing.T) {
	w := newTestWindow(t)
	newStubRelay(t, w, func(req types.Message) []types.Message {
		_ = w.Inject("evil-frame", respond(req, types.Succeed("forged")))
		time.Sleep(10 * time.Millisecond)
		return []types.Message{respond(req, types.Succeed("genuine"))}
	})
	c := newTestClient(t, w)

	data, err := c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "genuine", data)
}

func TestFailureEnvelopeBecomesRequestError(t *testing.T) {
	w := newTestWindow(t)
	newStubRelay(t, w, func(req types.Message) []types.Message {
		var payload types.TrackerRequest
		_ = json.Unmarshal(req.Payload, &payload)
		if payload.URL == "empty" {
			return []types.Message{respond(req, types.Envelope{Success: false})}
		}
		return []types.Message{respond(req, types.Fail("HTTP 401: Unauthorized"))}
	})
	c := newTestClient(t, w)

	_, err := c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "u"})
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "HTTP 401: Unauthorized", reqErr.Message)
	assert.Equal(t, types.ServiceTracker, reqErr.Service)
	assert.Equal(t, uint64(1), reqErr.ID.Seq)

	_, err = c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "empty"})
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, types.MsgRequestFailed, reqErr.Error())
}

func TestContextDoneDropsPendingEntry(t *testing.T) {
	w := newTestWindow(t)
	release := make(chan struct{})
	newStubRelay(t, w, func(req types.Message) []types.Message {
		<-release
		return []types.Message{respond(req, types.Succeed("late"))}
	})
	c := newTestClient(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Request(ctx, types.ServiceProxy, types.ProxyRequest{URL: "u"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Pending())
	close(release)
}

func TestCloseFailsPending(t *testing.T) {
	w := newTestWindow(t)
	release := make(chan struct{})
	newStubRelay(t, w, func(req types.Message) []types.Message {
		<-release
		return nil
	})
	c := NewClient(w, time.Second, nil)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "u"})
		errs <- err
	}()
	require.Eventually(t, func() bool { return c.Pending() == 1 }, time.Second, time.Millisecond)

	c.Close()
	assert.ErrorIs(t, <-errs, ErrClosed)
	close(release)

	_, err := c.Request(context.Background(), types.ServiceTracker, types.TrackerRequest{URL: "u"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPingTimeoutLeavesNoWaiter(t *testing.T) {
	w := newTestWindow(t)
	c := newTestClient(t, w)

	start := time.Now()
	assert.False(t, c.Ping(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 0, c.PingWaiters())

	// A late PONG after the timeout finds nobody waiting.
	require.NoError(t, w.Post(types.Message{Type: types.MessagePong}))
	require.Eventually(t, func() bool {
		select {
		case <-c.Ready():
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, c.PingWaiters())
}

func TestPingAnswered(t *testing.T) {
	w := newTestWindow(t)
	remove := w.Listen(func(msg types.Message) {
		if msg.Type == types.MessagePing {
			_ = w.Post(types.Message{Type: types.MessagePong})
		}
	})
	defer remove()
	c := newTestClient(t, w)

	assert.True(t, c.Ping(context.Background()))
	assert.Equal(t, 0, c.PingWaiters())
	<-c.Ready()
}

func TestReadyLatchReplays(t *testing.T) {
	w := newTestWindow(t)
	c := newTestClient(t, w)

	select {
	case <-c.Ready():
		t.Fatal("ready before announcement")
	default:
	}

	require.NoError(t, w.Post(types.Message{Type: types.MessageReady}))
	require.NoError(t, w.Post(types.Message{Type: types.MessageReady}))

	select {
	case <-c.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not observed")
	}
	// Late subscribers see the latch already set.
	<-c.Ready()
}

func TestInstallAnnouncesVersion(t *testing.T) {
	w := newTestWindow(t)
	events := make(chan types.Message, 1)
	w.Listen(func(msg types.Message) {
		if msg.Type == types.EventExtensionReady {
			events <- msg
		}
	})

	api, err := Install(w, Options{})
	require.NoError(t, err)
	defer api.Close()
	assert.Equal(t, "2.0.3", api.Version)

	select {
	case msg := <-events:
		var detail types.ReadyDetail
		require.NoError(t, json.Unmarshal(msg.Payload, &detail))
		assert.Equal(t, "2.0.3", detail.Version)
	case <-time.After(time.Second):
		t.Fatal("no installation event")
	}
}

func TestWaitReadyContextDone(t *testing.T) {
	w := newTestWindow(t)
	api, err := Install(w, Options{PingTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	defer api.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, api.WaitReady(ctx), context.DeadlineExceeded)
	assert.Equal(t, 0, api.Client().PingWaiters())
}

func TestEncodeURIComponent(t *testing.T) {
	tests := map[string]string{
		"/sites/DWVD/Shared Documents": "%2Fsites%2FDWVD%2FShared%20Documents",
		"project = ABC AND sprint in openSprints()": "project%20%3D%20ABC%20AND%20sprint%20in%20openSprints()",
		"a-b_c.d!e~f*g'h(i)j": "a-b_c.d!e~f*g'h(i)j",
		"Rapport été.docx":     "Rapport%20%C3%A9t%C3%A9.docx",
		"a&b=c?d#e":            "a%26b%3Dc%3Fd%23e",
	}
	for in, want := range tests {
		assert.Equal(t, want, encodeURIComponent(in), in)
	}
}

func TestUnwrapVerbose(t *testing.T) {
	inner := map[string]any{"results": []any{}}
	assert.Equal(t, inner, unwrapVerbose(map[string]any{"d": inner}))
	assert.Equal(t, map[string]any{"value": 1.0}, unwrapVerbose(map[string]any{"value": 1.0}))
	assert.Equal(t, map[string]any{"d": nil}, unwrapVerbose(map[string]any{"d": nil}))
	assert.Equal(t, "raw", unwrapVerbose("raw"))
}

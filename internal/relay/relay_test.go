package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sprintbridge/backend/internal/runtime"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/window"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// inbox collects window messages of interest to a test.
type inbox struct {
	mu   sync.Mutex
	msgs []types.Message
}

func watch(w *window.Window) *inbox {
	in := &inbox{}
	w.Listen(func(msg types.Message) {
		in.mu.Lock()
		defer in.mu.Unlock()
		in.msgs = append(in.msgs, msg)
	})
	return in
}

func (in *inbox) ofType(typ types.MessageType) []types.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []types.Message
	for _, m := range in.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (in *inbox) wait(t *testing.T, typ types.MessageType, n int) []types.Message {
	t.Helper()
	require.Eventually(t, func() bool { return len(in.ofType(typ)) >= n }, 2*time.Second, time.Millisecond)
	return in.ofType(typ)
}

// mockSender is a testify mock of runtime.Sender.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg types.RuntimeMessage) (types.Envelope, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(types.Envelope), args.Error(1)
}

func testConfig() Config {
	return Config{ReadyDelay: 20 * time.Millisecond, ForwardTimeout: time.Second}
}

func start(t *testing.T, w *window.Window, sender runtime.Sender, cfg Config) *Relay {
	t.Helper()
	r := New(w, sender, cfg)
	require.NoError(t, r.Start())
	t.Cleanup(r.Stop)
	return r
}

func newWindow(t *testing.T) *window.Window {
	t.Helper()
	w := window.New()
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func echoHandler() runtime.Handler {
	return runtime.HandlerFunc(func(ctx context.Context, msg types.RuntimeMessage) types.Envelope {
		var p map[string]any
		_ = json.Unmarshal(msg.Payload, &p)
		if d, ok := p["delay"].(float64); ok {
			time.Sleep(time.Duration(d) * time.Millisecond)
		}
		return types.Succeed(map[string]any{"type": string(msg.Type), "payload": p})
	})
}

func TestAnnouncesReadyTwice(t *testing.T) {
	w := newWindow(t)
	in := watch(w)
	start(t, w, runtime.NewLocal(echoHandler()), testConfig())

	ready := in.wait(t, types.MessageReady, 2)
	assert.Len(t, ready, 2)
}

func TestStartTwice(t *testing.T) {
	w := newWindow(t)
	r := start(t, w, runtime.NewLocal(echoHandler()), testConfig())
	assert.Error(t, r.Start())
}

func TestPingPong(t *testing.T) {
	w := newWindow(t)
	in := watch(w)
	start(t, w, runtime.NewLocal(echoHandler()), testConfig())

	require.NoError(t, w.Post(types.Message{Type: types.MessagePing}))
	in.wait(t, types.MessagePong, 1)
}

func TestForwardsRequestVerbatim(t *testing.T) {
	w := newWindow(t)
	in := watch(w)
	start(t, w, runtime.NewLocal(echoHandler()), testConfig())

	require.NoError(t, w.Post(types.Message{
		Type:       types.RequestFromPage(types.ServiceTracker),
		InstanceID: "client-a",
		RequestID:  7,
		Payload:    json.RawMessage(`{"url":"https://jira.example.com/rest/api/2/myself","method":"GET"}`),
	}))

	resp := in.wait(t, types.ResponseToPage(types.ServiceTracker), 1)[0]
	assert.Equal(t, uint64(7), resp.RequestID)
	assert.Equal(t, "client-a", resp.InstanceID)
	require.NotNil(t, resp.Response)
	assert.True(t, resp.Response.Success)
	assert.Equal(t, map[string]any{
		"type": "TRACKER_REQUEST",
		"payload": map[string]any{
			"url":    "https://jira.example.com/rest/api/2/myself",
			"method": "GET",
		},
	}, resp.Response.Data)
}

func TestOverlappingRequestsKeepTheirIDs(t *testing.T) {
	w := newWindow(t)
	in := watch(w)
	start(t, w, runtime.NewLocal(echoHandler()), testConfig())

	require.NoError(t, w.Post(types.Message{
		Type:      types.RequestFromPage(types.ServiceDocstore),
		RequestID: 1,
		Payload:   json.RawMessage(`{"endpoint":"/slow","delay":80}`),
	}))
	require.NoError(t, w.Post(types.Message{
		Type:      types.RequestFromPage(types.ServiceDocstore),
		RequestID: 2,
		Payload:   json.RawMessage(`{"endpoint":"/fast"}`),
	}))

	resps := in.wait(t, types.ResponseToPage(types.ServiceDocstore), 2)
	require.Len(t, resps, 2)

	// The fast request completes first.
	assert.Equal(t, uint64(2), resps[0].RequestID)
	assert.Equal(t, uint64(1), resps[1].RequestID)
	for _, resp := range resps {
		data := resp.Response.Data.(map[string]any)
		endpoint := data["payload"].(map[string]any)["endpoint"]
		if resp.RequestID == 1 {
			assert.Equal(t, "/slow", endpoint)
		} else {
			assert.Equal(t, "/fast", endpoint)
		}
	}
}

func TestIgnoresForeignSource(t *testing.T) {
	sender := &mockSender{}
	w := newWindow(t)
	in := watch(w)
	start(t, w, sender, testConfig())

	require.NoError(t, w.Inject("other-frame", types.Message{Type: types.MessagePing}))
	require.NoError(t, w.Inject("other-frame", types.Message{
		Type:      types.RequestFromPage(types.ServiceProxy),
		RequestID: 1,
		Payload:   json.RawMessage(`{"url":"https://evil.example.com"}`),
	}))
	// A marker from the window itself proves the foreign messages were dispatched.
	require.NoError(t, w.Post(types.Message{Type: types.MessagePing}))

	in.wait(t, types.MessagePong, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, in.ofType(types.MessagePong), 1)
	assert.Empty(t, in.ofType(types.ResponseToPage(types.ServiceProxy)))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestUnknownPageRequest(t *testing.T) {
	w := newWindow(t)
	in := watch(w)
	start(t, w, &mockSender{}, testConfig())

	require.NoError(t, w.Post(types.Message{Type: "CALENDAR_REQUEST_FROM_PAGE", RequestID: 3}))

	resp := in.wait(t, "CALENDAR_RESPONSE_TO_PAGE", 1)[0]
	assert.Equal(t, uint64(3), resp.RequestID)
	assert.Equal(t, &types.Envelope{Success: false, Error: types.MsgUnknownMessageType}, resp.Response)
}

func TestIgnoresOtherTags(t *testing.T) {
	sender := &mockSender{}
	w := newWindow(t)
	in := watch(w)
	start(t, w, sender, testConfig())

	for _, typ := range []types.MessageType{
		types.ResponseToPage(types.ServiceTracker),
		types.MessagePong,
		types.EventExtensionReady,
		"_REQUEST_FROM_PAGE",
	} {
		require.NoError(t, w.Post(types.Message{Type: typ, RequestID: 1}))
	}
	require.NoError(t, w.Post(types.Message{Type: types.MessagePing}))
	in.wait(t, types.MessagePong, 2)

	assert.Len(t, in.ofType(types.ResponseToPage(types.ServiceTracker)), 1)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSenderErrorBecomesFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg types.RuntimeMessage) bool {
		return msg.Type == types.RuntimeRequest(types.ServiceProxy)
	})).Return(types.Envelope{}, errors.New("runtime channel closed"))

	w := newWindow(t)
	in := watch(w)
	start(t, w, sender, testConfig())

	require.NoError(t, w.Post(types.Message{
		Type:      types.RequestFromPage(types.ServiceProxy),
		RequestID: 9,
		Payload:   json.RawMessage(`{"url":"https://api.example.com"}`),
	}))

	resp := in.wait(t, types.ResponseToPage(types.ServiceProxy), 1)[0]
	assert.Equal(t, uint64(9), resp.RequestID)
	assert.False(t, resp.Response.Success)
	assert.Equal(t, "runtime channel closed", resp.Response.Error)
	sender.AssertExpectations(t)
}

func TestSenderPanicBecomesFailure(t *testing.T) {
	handler := runtime.HandlerFunc(func(context.Context, types.RuntimeMessage) types.Envelope {
		panic("executor crashed")
	})
	w := newWindow(t)
	in := watch(w)
	start(t, w, panicSender{handler}, testConfig())

	require.NoError(t, w.Post(types.Message{Type: types.RequestFromPage(types.ServiceTracker), RequestID: 1}))

	resp := in.wait(t, types.ResponseToPage(types.ServiceTracker), 1)[0]
	assert.False(t, resp.Response.Success)
	assert.Equal(t, "executor crashed", resp.Response.Error)
}

// panicSender calls its handler on the caller's goroutine.
type panicSender struct {
	h runtime.Handler
}

func (s panicSender) Send(ctx context.Context, msg types.RuntimeMessage) (types.Envelope, error) {
	return s.h.Handle(ctx, msg), nil
}

func TestForwardTimeout(t *testing.T) {
	blocked := runtime.HandlerFunc(func(ctx context.Context, _ types.RuntimeMessage) types.Envelope {
		<-ctx.Done()
		return types.FailErr(ctx.Err())
	})
	w := newWindow(t)
	in := watch(w)
	cfg := testConfig()
	cfg.ForwardTimeout = 30 * time.Millisecond
	start(t, w, runtime.NewLocal(blocked), cfg)

	require.NoError(t, w.Post(types.Message{Type: types.RequestFromPage(types.ServiceDocstore), RequestID: 4}))

	resp := in.wait(t, types.ResponseToPage(types.ServiceDocstore), 1)[0]
	assert.False(t, resp.Response.Success)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Response.Error)
}

func TestStopAbandonsInFlight(t *testing.T) {
	blocked := runtime.HandlerFunc(func(ctx context.Context, _ types.RuntimeMessage) types.Envelope {
		<-ctx.Done()
		return types.FailErr(ctx.Err())
	})
	w := newWindow(t)
	r := New(w, runtime.NewLocal(blocked), DefaultConfig())
	require.NoError(t, r.Start())

	require.NoError(t, w.Post(types.Message{Type: types.RequestFromPage(types.ServiceTracker), RequestID: 1}))
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

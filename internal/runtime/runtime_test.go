package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sprintbridge/backend/internal/shared/types"
)

// echo answers with the payload as data after the delay named in it.
func echo() HandlerFunc {
	return func(ctx context.Context, msg types.RuntimeMessage) types.Envelope {
		var p struct {
			Value string `json:"value"`
			Delay int    `json:"delay"`
		}
		_ = json.Unmarshal(msg.Payload, &p)
		select {
		case <-time.After(time.Duration(p.Delay) * time.Millisecond):
		case <-ctx.Done():
			return types.FailErr(ctx.Err())
		}
		if p.Value == "panic" {
			panic("boom")
		}
		return types.Succeed(string(msg.Type) + ":" + p.Value)
	}
}

func payload(value string, delay int) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"value": value, "delay": delay})
	return raw
}

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ServeConn(r.Context(), conn, h, nil, nil)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLocalSend(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	local := NewLocal(echo())
	env, err := local.Send(context.Background(), types.RuntimeMessage{
		Type:    "TRACKER_REQUEST",
		Payload: payload("a", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, types.Succeed("TRACKER_REQUEST:a"), env)
}

func TestLocalSendContextDone(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	local := NewLocal(echo())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := local.Send(ctx, types.RuntimeMessage{Type: "PROXY_REQUEST", Payload: payload("slow", 5000)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientRoundTrip(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url := startServer(t, echo())
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	env, err := client.Send(context.Background(), types.RuntimeMessage{
		Type:    "DOCSTORE_REQUEST",
		Payload: payload("files", 0),
	})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "DOCSTORE_REQUEST:files", env.Data)
	assert.Equal(t, 0, client.Pending())
}

func TestClientOverlappingRequests(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url := startServer(t, echo())
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	// Earlier requests take longer so responses arrive reversed.
	const n = 5
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := string(rune('a' + i))
			env, err := client.Send(context.Background(), types.RuntimeMessage{
				Type:    "PROXY_REQUEST",
				Payload: payload(value, (n-i)*20),
			})
			if assert.NoError(t, err) {
				results[i], _ = env.Data.(string)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, "PROXY_REQUEST:"+string(rune('a'+i)), results[i])
	}
}

func TestServerRecoversPanics(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url := startServer(t, echo())
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	env, err := client.Send(context.Background(), types.RuntimeMessage{Type: "TRACKER_REQUEST", Payload: payload("panic", 0)})
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, "boom", env.Error)
}

func TestLocalSendRecoversPanics(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	local := NewLocal(HandlerFunc(func(context.Context, types.RuntimeMessage) types.Envelope {
		panic("boom")
	}))

	env, err := local.Send(context.Background(), types.RuntimeMessage{Type: "TRACKER_REQUEST"})
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, "boom", env.Error)
}

func TestClientContextDoneRemovesPending(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url := startServer(t, echo())
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Send(ctx, types.RuntimeMessage{Type: "TRACKER_REQUEST", Payload: payload("slow", 200)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, client.Pending())
}

func TestClientClosedFailsPending(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url := startServer(t, echo())
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), types.RuntimeMessage{Type: "TRACKER_REQUEST", Payload: payload("slow", 300)})
		errs <- err
	}()

	require.Eventually(t, func() bool { return client.Pending() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, client.Close())

	assert.ErrorIs(t, <-errs, ErrClosed)

	_, err = client.Send(context.Background(), types.RuntimeMessage{Type: "TRACKER_REQUEST"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/runtime")
	assert.Error(t, err)
}

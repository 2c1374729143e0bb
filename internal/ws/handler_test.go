package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/runtime"
	"github.com/sprintbridge/backend/internal/shared/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echo() runtime.HandlerFunc {
	return func(_ context.Context, msg types.RuntimeMessage) types.Envelope {
		var payload any
		_ = json.Unmarshal(msg.Payload, &payload)
		return types.Succeed(payload)
	}
}

func startServer(t *testing.T, h runtime.Handler, origins []string) (string, *Handler, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	handler := NewHandler(h, origins, nil, metrics)

	router := gin.New()
	router.GET("/runtime", handler.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		handler.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/runtime", handler, metrics
}

func TestRoundTrip(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url, _, metrics := startServer(t, echo(), nil)
	client, err := runtime.Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	env, err := client.Send(context.Background(), types.RuntimeMessage{
		Type:    types.RuntimeRequest(types.ServiceTracker),
		Payload: json.RawMessage(`{"url":"https://t/rest/api/2/myself"}`),
	})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"url": "https://t/rest/api/2/myself"}, env.Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSConnections))
}

func TestOriginCheck(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url, _, _ := startServer(t, echo(), []string{"chrome-extension://*"})

	_, err := runtime.Dial(context.Background(), url, runtime.WithDialHeader(http.Header{
		"Origin": []string{"https://evil.example.com"},
	}))
	assert.Error(t, err)

	client, err := runtime.Dial(context.Background(), url, runtime.WithDialHeader(http.Header{
		"Origin": []string{"chrome-extension://abcdef"},
	}))
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestCloseEndsConnections(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	url, handler, metrics := startServer(t, echo(), nil)
	client, err := runtime.Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSConnections) == 1
	}, time.Second, 5*time.Millisecond)

	handler.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after Close")
	}
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WSConnections))

	_, err = runtime.Dial(context.Background(), url)
	assert.Error(t, err)
}

package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// MaxFrameSize bounds inbound request frames.
const MaxFrameSize = 16 << 20

// ServeConn answers request frames on conn with h until the connection or
// ctx ends. Each request runs on its own goroutine; ServeConn returns after
// every in-flight request has finished.
func ServeConn(ctx context.Context, conn *websocket.Conn, h Handler, log *logging.Logger, metrics *monitoring.Metrics) {
	log = logging.OrNop(log).For(logging.ContextRuntime)
	conn.SetReadLimit(MaxFrameSize)

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	// Nobody is left to answer once the read side is gone.
	defer func() {
		cancel()
		wg.Wait()
	}()

	reply := func(id uint64, env types.Envelope) {
		data, err := encodeFrame(Frame{ID: id, Response: &env})
		if err != nil {
			log.Error("Failed to encode response frame", zap.Error(err))
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("Failed to write response frame", zap.Uint64("id", id), zap.Error(err))
			return
		}
		if metrics != nil {
			metrics.RecordWSMessage("out", "response")
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Runtime connection ended", zap.Error(err))
			}
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			log.Warn("Dropping malformed runtime frame", zap.Error(err))
			continue
		}
		if metrics != nil {
			label := "unknown"
			if svc, ok := frame.Type.RuntimeService(); ok {
				label = string(svc)
			}
			metrics.RecordWSMessage("in", label)
		}

		wg.Add(1)
		go func(f Frame) {
			defer wg.Done()
			reply(f.ID, handleSafe(ctx, h, types.RuntimeMessage{Type: f.Type, Payload: f.Payload}, log))
		}(frame)
	}
}

func handleSafe(ctx context.Context, h Handler, msg types.RuntimeMessage, log *logging.Logger) (env types.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Runtime handler panic", zap.String("type", string(msg.Type)), zap.Any("panic", r))
			env = types.Fail(fmt.Sprint(r))
		}
	}()
	return h.Handle(ctx, msg)
}

package runtime

import (
	"encoding/json"

	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// Frame is one WebSocket message. Requests carry Type and Payload, responses
// carry Response.
type Frame struct {
	ID       uint64            `json:"id"`
	Type     types.MessageType `json:"type,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Response *types.Envelope   `json:"response,omitempty"`
}

// IsResponse reports whether f answers a request.
func (f Frame) IsResponse() bool {
	return f.Response != nil
}

func encodeFrame(f Frame) ([]byte, error) {
	return codec.Marshal(f)
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := codec.Unmarshal(data, &f)
	return f, err
}

package types

// Failure messages shared by every context.
const (
	MsgNetworkError       = "Network error"
	MsgUnknownMessageType = "Unknown message type"
	MsgRequestFailed      = "Request failed"
)

// Envelope is the normalized response shape. Proxy responses additionally
// carry the HTTP metadata (OK, Status, StatusText, Headers).
type Envelope struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	OK         *bool             `json:"ok,omitempty"`
	Status     int               `json:"status,omitempty"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Succeed creates a successful envelope.
func Succeed(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail creates a failed envelope. An empty message becomes MsgNetworkError.
func Fail(message string) Envelope {
	if message == "" {
		message = MsgNetworkError
	}
	return Envelope{Success: false, Error: message}
}

// FailErr creates a failed envelope from an error.
func FailErr(err error) Envelope {
	if err == nil {
		return Fail("")
	}
	return Fail(err.Error())
}

// IsExtended reports whether the envelope carries HTTP metadata.
func (e Envelope) IsExtended() bool {
	return e.OK != nil
}

package page

import (
	"errors"

	"github.com/sprintbridge/backend/internal/shared/types"
)

// ErrClosed is returned by calls pending or started after Close.
var ErrClosed = errors.New("page client closed")

// RequestError is a failure envelope returned for one request.
type RequestError struct {
	Service types.Service
	ID      types.RequestID
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func failure(service types.Service, id types.RequestID, env types.Envelope) *RequestError {
	msg := env.Error
	if msg == "" {
		msg = types.MsgRequestFailed
	}
	return &RequestError{Service: service, ID: id, Message: msg}
}

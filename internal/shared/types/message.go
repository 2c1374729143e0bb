package types

import (
	"encoding/json"
	"strings"
)

// Service tags the external service a request targets.
type Service string

const (
	ServiceTracker  Service = "tracker"
	ServiceDocstore Service = "docstore"
	ServiceProxy    Service = "proxy"
)

// Services lists every known service tag.
var Services = []Service{ServiceTracker, ServiceDocstore, ServiceProxy}

// Valid reports whether s is a known service tag.
func (s Service) Valid() bool {
	switch s {
	case ServiceTracker, ServiceDocstore, ServiceProxy:
		return true
	}
	return false
}

// MessageType is the string tag carried by every message.
type MessageType string

const (
	MessagePing  MessageType = "PING"
	MessagePong  MessageType = "PONG"
	MessageReady MessageType = "READY"

	// EventExtensionReady is dispatched by the page API once installed.
	EventExtensionReady MessageType = "EXTENSION_READY"
)

const (
	suffixRequestFromPage = "_REQUEST_FROM_PAGE"
	suffixResponseToPage  = "_RESPONSE_TO_PAGE"
	suffixRuntimeRequest  = "_REQUEST"
)

// RequestFromPage returns the page->relay tag for s.
func RequestFromPage(s Service) MessageType {
	return MessageType(strings.ToUpper(string(s)) + suffixRequestFromPage)
}

// ResponseToPage returns the relay->page tag for s.
func ResponseToPage(s Service) MessageType {
	return MessageType(strings.ToUpper(string(s)) + suffixResponseToPage)
}

// RuntimeRequest returns the relay->executor tag for s.
func RuntimeRequest(s Service) MessageType {
	return MessageType(strings.ToUpper(string(s)) + suffixRuntimeRequest)
}

// IsPageRequest reports whether t has the page request shape, known service or not.
func (t MessageType) IsPageRequest() bool {
	return strings.HasSuffix(string(t), suffixRequestFromPage) && len(t) > len(suffixRequestFromPage)
}

// ResponseFor maps a page request tag to its response tag.
func (t MessageType) ResponseFor() MessageType {
	return MessageType(strings.TrimSuffix(string(t), suffixRequestFromPage) + suffixResponseToPage)
}

// PageRequestService returns the service of a page request tag.
func (t MessageType) PageRequestService() (Service, bool) {
	if !t.IsPageRequest() {
		return "", false
	}
	s := Service(strings.ToLower(strings.TrimSuffix(string(t), suffixRequestFromPage)))
	return s, s.Valid()
}

// RuntimeService returns the service of a runtime request tag.
func (t MessageType) RuntimeService() (Service, bool) {
	if !strings.HasSuffix(string(t), suffixRuntimeRequest) || t.IsPageRequest() {
		return "", false
	}
	s := Service(strings.ToLower(strings.TrimSuffix(string(t), suffixRuntimeRequest)))
	return s, s.Valid()
}

// Message travels on the window bus between page code and the relay.
// Source is stamped by the window and never serialized.
type Message struct {
	Type       MessageType     `json:"type"`
	Source     string          `json:"-"`
	InstanceID string          `json:"instanceId,omitempty"`
	RequestID  uint64          `json:"requestId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Response   *Envelope       `json:"response,omitempty"`
}

// Correlation returns the message's correlation identifier.
func (m Message) Correlation() RequestID {
	return RequestID{Instance: m.InstanceID, Seq: m.RequestID}
}

// RuntimeMessage travels on the privileged runtime channel.
type RuntimeMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ReadyDetail is the payload of EventExtensionReady.
type ReadyDetail struct {
	Version string `json:"version"`
}

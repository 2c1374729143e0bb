package types

import "fmt"

// TrackerRequest describes an issue tracker call.
type TrackerRequest struct {
	URL      string `json:"url"`
	Method   string `json:"method,omitempty"`
	Body     any    `json:"body,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// DocstoreRequest describes a document store call relative to the fixed base origin.
type DocstoreRequest struct {
	Endpoint       string `json:"endpoint"`
	Method         string `json:"method,omitempty"`
	Body           any    `json:"body,omitempty"`
	BinaryResponse bool   `json:"binaryResponse,omitempty"`
}

// ProxyOptions mirrors the subset of fetch options the proxy honours.
type ProxyOptions struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// ProxyRequest describes a generic passthrough call.
type ProxyRequest struct {
	URL     string       `json:"url"`
	Options ProxyOptions `json:"options"`
}

// RequestID correlates one response with its request. Seq is allocated by a
// single page client; Instance namespaces clients sharing a window.
type RequestID struct {
	Instance string
	Seq      uint64
}

// String returns the id as instance/seq.
func (id RequestID) String() string {
	if id.Instance == "" {
		return fmt.Sprintf("%d", id.Seq)
	}
	return fmt.Sprintf("%s/%d", id.Instance, id.Seq)
}

// methodOrDefault returns method, or GET when empty.
func methodOrDefault(method string) string {
	if method == "" {
		return "GET"
	}
	return method
}

// EffectiveMethod returns the HTTP method, defaulting to GET.
func (r TrackerRequest) EffectiveMethod() string { return methodOrDefault(r.Method) }

// EffectiveMethod returns the HTTP method, defaulting to GET.
func (r DocstoreRequest) EffectiveMethod() string { return methodOrDefault(r.Method) }

// EffectiveMethod returns the HTTP method, defaulting to GET.
func (r ProxyRequest) EffectiveMethod() string { return methodOrDefault(r.Options.Method) }

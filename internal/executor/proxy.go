package executor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// hiddenHeaders are response headers a browser never exposes to fetch callers.
var hiddenHeaders = map[string]bool{
	"set-cookie":  true,
	"set-cookie2": true,
}

// ErrBodyNotAllowed rejects proxy calls carrying a body on GET or HEAD.
var ErrBodyNotAllowed = errors.New("request with GET/HEAD method cannot have body")

// forbiddenProxyHeader reports headers a caller may not set on a proxy call.
func forbiddenProxyHeader(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cookie", "cookie2":
		return true
	}
	return false
}

func allowsBody(method string) bool {
	return !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead)
}

// Proxy executes a generic passthrough call. No cookies are attached, even
// when the caller supplies a Cookie header.
func (e *Executor) Proxy(ctx context.Context, req types.ProxyRequest) types.Envelope {
	c := e.begin(types.ServiceProxy, req.URL)
	method := req.EffectiveMethod()

	r, err := e.client.Request(ctx)
	if err != nil {
		return c.fail(monitoring.OutcomeNetwork, err)
	}
	for name, value := range req.Options.Headers {
		if forbiddenProxyHeader(name) {
			continue
		}
		r.SetHeader(name, value)
	}

	if present(req.Options.Body) {
		if !allowsBody(method) {
			return c.fail(monitoring.OutcomeBadRequest, ErrBodyNotAllowed)
		}
		switch body := req.Options.Body.(type) {
		case string:
			r.SetBody([]byte(body))
		default:
			raw, err := codec.Marshal(body)
			if err != nil {
				return c.fail(monitoring.OutcomeBadRequest, err)
			}
			r.SetBody(raw)
		}
	}

	resp, failed := e.send(c, r, method, req.URL)
	if failed != nil {
		return *failed
	}

	ok := resp.IsSuccess()
	env := types.Envelope{
		Success:    true,
		Data:       proxyData(resp),
		OK:         &ok,
		Status:     resp.StatusCode(),
		StatusText: StatusText(resp.StatusCode(), resp.Status()),
		Headers:    FlattenHeaders(resp.Header()),
	}
	return e.succeed(c, env)
}

// proxyData parses JSON content and falls back to raw text.
func proxyData(resp *resty.Response) any {
	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		var data any
		if err := codec.Unmarshal(resp.Body(), &data); err == nil {
			return data
		}
	}
	return string(resp.Body())
}

// StatusText strips the numeric code from an HTTP status line.
func StatusText(code int, status string) string {
	text := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if text == "" {
		return http.StatusText(code)
	}
	return text
}

// FlattenHeaders lowercases header names and joins repeated values with ", ".
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if hiddenHeaders[key] {
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

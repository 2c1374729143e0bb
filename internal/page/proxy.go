package page

import (
	"context"

	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// ProxyResponse mirrors the fetch Response fields the proxy returns.
type ProxyResponse struct {
	OK         bool
	Status     int
	StatusText string
	Headers    map[string]string

	data any
}

// Data returns the decoded body: parsed JSON or raw text.
func (r *ProxyResponse) Data() any {
	return r.data
}

// JSON decodes the body into v.
func (r *ProxyResponse) JSON(v any) error {
	return codec.Convert(r.data, v)
}

// Text returns text bodies as is and JSON bodies re-encoded.
func (r *ProxyResponse) Text() (string, error) {
	if s, ok := r.data.(string); ok {
		return s, nil
	}
	raw, err := codec.Marshal(r.data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ProxyAPI performs cookie-less passthrough calls.
type ProxyAPI struct {
	client *Client
}

// Fetch calls url through the executor. Non-2xx statuses are not errors;
// check OK.
func (p *ProxyAPI) Fetch(ctx context.Context, url string, opts types.ProxyOptions) (*ProxyResponse, error) {
	env, id, err := p.client.Call(ctx, types.ServiceProxy, types.ProxyRequest{URL: url, Options: opts})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, failure(types.ServiceProxy, id, env)
	}

	resp := &ProxyResponse{
		Status:     env.Status,
		StatusText: env.StatusText,
		Headers:    env.Headers,
		data:       env.Data,
	}
	if env.OK != nil {
		resp.OK = *env.OK
	}
	return resp, nil
}

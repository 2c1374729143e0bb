package page

import (
	"context"
	"fmt"
	"time"

	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/window"
)

// Version is the bridge API version exposed to page code.
const Version = "2.0.3"

// Options configures Install.
type Options struct {
	PingTimeout  time.Duration
	DocstoreSite string
	Logger       *logging.Logger
}

// DefaultOptions returns the default page options.
func DefaultOptions() Options {
	return Options{
		PingTimeout:  time.Second,
		DocstoreSite: "/sites/DWVD",
	}
}

// API is the namespace installed into a page.
type API struct {
	Version  string
	Tracker  *TrackerAPI
	Docstore *DocstoreAPI
	Proxy    *ProxyAPI

	client *Client
}

// Install attaches the API to win and dispatches EXTENSION_READY with the
// version on it.
func Install(win *window.Window, opts Options) (*API, error) {
	defaults := DefaultOptions()
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaults.PingTimeout
	}
	if opts.DocstoreSite == "" {
		opts.DocstoreSite = defaults.DocstoreSite
	}

	client := NewClient(win, opts.PingTimeout, opts.Logger)
	api := &API{
		Version:  Version,
		Tracker:  &TrackerAPI{client: client},
		Docstore: &DocstoreAPI{client: client, site: opts.DocstoreSite},
		Proxy:    &ProxyAPI{client: client},
		client:   client,
	}

	detail, err := codec.Raw(types.ReadyDetail{Version: Version})
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := win.Post(types.Message{Type: types.EventExtensionReady, Payload: detail}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to announce installation: %w", err)
	}
	return api, nil
}

// Client returns the request primitive behind the API.
func (a *API) Client() *Client {
	return a.client
}

// Ping reports whether the relay answered within the ping timeout.
func (a *API) Ping(ctx context.Context) bool {
	return a.client.Ping(ctx)
}

// Ready returns a channel closed once the relay is known to be present.
func (a *API) Ready() <-chan struct{} {
	return a.client.Ready()
}

// WaitReady pings until the relay is present or ctx is done.
func (a *API) WaitReady(ctx context.Context) error {
	for {
		select {
		case <-a.client.Ready():
			return nil
		default:
		}
		if a.client.Ping(ctx) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Close detaches the API from its window.
func (a *API) Close() {
	a.client.Close()
}

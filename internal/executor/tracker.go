package executor

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/storage"
)

// Tracker executes an issue tracker call. Basic auth is attached only when
// both username and password are set; ambient cookies are always attached.
func (e *Executor) Tracker(ctx context.Context, req types.TrackerRequest) types.Envelope {
	c := e.begin(types.ServiceTracker, req.URL)
	method := req.EffectiveMethod()

	r, err := e.client.Request(ctx)
	if err != nil {
		return c.fail(monitoring.OutcomeNetwork, err)
	}
	r.SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if req.Username != "" && req.Password != "" {
		r.SetBasicAuth(req.Username, req.Password)
	}

	if target, err := url.Parse(req.URL); err == nil {
		r.SetCookies(e.ambientCookies(c, target, nil))
	}

	if present(req.Body) && hasWriteBody(method) {
		body, err := codec.Marshal(req.Body)
		if err != nil {
			return c.fail(monitoring.OutcomeBadRequest, err)
		}
		r.SetBody(body)
	}

	resp, failed := e.send(c, r, method, req.URL)
	if failed != nil {
		return *failed
	}
	if failed := c.checkStatus(resp); failed != nil {
		return *failed
	}

	data, err := parseJSON(resp.Body())
	if err != nil {
		return c.fail(monitoring.OutcomeHTTPError, err)
	}
	return e.succeed(c, types.Succeed(data))
}

// ambientCookies returns the stored cookies a browser attaches to target,
// skipping names already sent explicitly.
func (e *Executor) ambientCookies(c *call, target *url.URL, skip map[string]bool) []*http.Cookie {
	if e.store == nil {
		return nil
	}
	cookies, err := e.store.CookiesForURL(target)
	if err != nil {
		c.log.Warn("Failed to read ambient cookies", zap.Error(err))
		return nil
	}
	return httpCookies(cookies, skip)
}

func httpCookies(cookies []storage.Cookie, skip map[string]bool) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		if skip[ck.Name] {
			continue
		}
		out = append(out, ck.HTTP())
	}
	return out
}

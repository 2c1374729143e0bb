package executor

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
	"github.com/sprintbridge/backend/internal/storage"
)

const odataVerbose = "application/json;odata=verbose"

// Docstore executes a document store call against the configured base
// origin. Every cookie of the parent domain is sent in an explicit Cookie
// header, read fresh for each call.
func (e *Executor) Docstore(ctx context.Context, req types.DocstoreRequest) types.Envelope {
	target := strings.TrimSuffix(e.cfg.DocstoreBaseURL, "/") + req.Endpoint
	c := e.begin(types.ServiceDocstore, target)
	method := req.EffectiveMethod()

	cookies := e.domainCookies(c)
	if len(cookies) == 0 {
		c.log.Warn("No docstore cookies found, user might not be authenticated",
			zap.String("domain", e.cfg.CookieDomain))
	}

	r, err := e.client.Request(ctx)
	if err != nil {
		return c.fail(monitoring.OutcomeNetwork, err)
	}
	r.SetHeader("Accept", odataVerbose).
		SetHeader("Content-Type", odataVerbose)
	if len(cookies) > 0 {
		r.SetHeader("Cookie", CookieHeader(cookies))
	}

	explicit := make(map[string]bool, len(cookies))
	for _, ck := range cookies {
		explicit[ck.Name] = true
	}
	if u, err := url.Parse(target); err == nil {
		r.SetCookies(e.ambientCookies(c, u, explicit))
	}

	if present(req.Body) && hasWriteBody(method) {
		body, err := codec.Marshal(req.Body)
		if err != nil {
			return c.fail(monitoring.OutcomeBadRequest, err)
		}
		r.SetBody(body)
	}

	resp, failed := e.send(c, r, method, target)
	if failed != nil {
		return *failed
	}
	if failed := c.checkStatus(resp); failed != nil {
		return *failed
	}

	if req.BinaryResponse {
		return e.succeed(c, types.Succeed(base64.StdEncoding.EncodeToString(resp.Body())))
	}

	data, err := parseJSON(resp.Body())
	if err != nil {
		return c.fail(monitoring.OutcomeHTTPError, err)
	}
	return e.succeed(c, types.Succeed(data))
}

func (e *Executor) domainCookies(c *call) []storage.Cookie {
	if e.store == nil {
		return nil
	}
	cookies, err := e.store.AllCookies(e.cfg.CookieDomain)
	if err != nil {
		c.log.Warn("Failed to read docstore cookies", zap.Error(err))
		return nil
	}
	return cookies
}

// CookieHeader joins cookies as "name=value; name=value" in the given order.
func CookieHeader(cookies []storage.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

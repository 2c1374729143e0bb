package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/storage"
)

// CookieView is a stored cookie without its value.
type CookieView struct {
	Name     string     `json:"name"`
	Domain   string     `json:"domain"`
	Path     string     `json:"path"`
	Secure   bool       `json:"secure,omitempty"`
	HTTPOnly bool       `json:"httpOnly,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
}

func viewOf(c storage.Cookie) CookieView {
	v := CookieView{
		Name:     c.Name,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if !c.Expires.IsZero() {
		expires := c.Expires
		v.Expires = &expires
	}
	return v
}

// ListCookies lists the cookies of ?domain=, defaulting to the docstore
// cookie domain. Values are never returned.
func (h *Handlers) ListCookies(c *gin.Context) {
	domain := c.DefaultQuery("domain", h.opts.CookieDomain)
	cookies, err := h.store.AllCookies(domain)
	if err != nil {
		h.log.Error("Failed to list cookies", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cookies"})
		return
	}

	views := make([]CookieView, 0, len(cookies))
	for _, ck := range cookies {
		views = append(views, viewOf(ck))
	}
	c.JSON(http.StatusOK, gin.H{
		"domain":  domain,
		"count":   len(views),
		"cookies": views,
	})
}

// SetCookies seeds cookies, replacing any with the same domain, path and name.
func (h *Handlers) SetCookies(c *gin.Context) {
	var cookies []storage.Cookie
	if err := c.ShouldBindJSON(&cookies); err != nil {
		badRequest(c, "expected a JSON array of cookies")
		return
	}
	for i := range cookies {
		if cookies[i].Name == "" || cookies[i].Domain == "" {
			badRequest(c, "every cookie needs a name and a domain")
			return
		}
		if cookies[i].Path == "" {
			cookies[i].Path = "/"
		}
	}

	if err := h.store.PutCookies(cookies...); err != nil {
		h.log.Error("Failed to store cookies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store cookies"})
		return
	}
	h.stored(len(cookies))
	c.JSON(http.StatusOK, gin.H{"stored": len(cookies)})
}

// ImportRequest carries raw Set-Cookie header values received from URL.
type ImportRequest struct {
	URL       string   `json:"url" binding:"required"`
	SetCookie []string `json:"set_cookie" binding:"required"`
}

// ImportCookies stores raw Set-Cookie values as a browser would for URL.
func (h *Handlers) ImportCookies(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "expected {url, set_cookie}")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		badRequest(c, "invalid url")
		return
	}

	parsed := make([]*http.Cookie, 0, len(req.SetCookie))
	for _, line := range req.SetCookie {
		ck, err := http.ParseSetCookie(line)
		if err != nil {
			badRequest(c, "invalid Set-Cookie value: "+err.Error())
			return
		}
		parsed = append(parsed, ck)
	}

	if err := h.store.StoreResponseCookies(u, parsed); err != nil {
		h.log.Error("Failed to import cookies", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import cookies"})
		return
	}
	h.stored(len(parsed))
	c.JSON(http.StatusOK, gin.H{"imported": len(parsed)})
}

// DeleteCookie removes ?domain=&path=&name=.
func (h *Handlers) DeleteCookie(c *gin.Context) {
	domain, name := c.Query("domain"), c.Query("name")
	if domain == "" || name == "" {
		badRequest(c, "domain and name required")
		return
	}
	if err := h.store.RemoveCookie(domain, c.DefaultQuery("path", "/"), name); err != nil {
		h.log.Error("Failed to remove cookie", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove cookie"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) stored(n int) {
	if h.metrics != nil {
		h.metrics.AddCookiesStored(n)
	}
}

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       time.Duration
}

// DefaultCORSConfig returns the CORS configuration for the executor API.
// Only extension origins may call it from a browser.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"chrome-extension://*", "moz-extension://*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept",
			"Origin",
			"Cache-Control",
		},
		MaxAge: 12 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration. Origins
// may end in "*" to match a prefix. Credentials are never allowed: the
// executor owns the cookies, callers do not.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return MatchOrigin(origin, cfg.AllowOrigins)
		},
		AllowMethods:           cfg.AllowMethods,
		AllowHeaders:           cfg.AllowHeaders,
		AllowCredentials:       false,
		AllowBrowserExtensions: true,
		MaxAge:                 cfg.MaxAge,
	})
}

// MatchOrigin reports whether origin is allowed. An empty origin comes from
// a non-browser client and is always allowed.
func MatchOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, pattern := range allowed {
		switch {
		case pattern == "*":
			return true
		case strings.HasSuffix(pattern, "*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		case strings.EqualFold(pattern, origin):
			return true
		}
	}
	return false
}

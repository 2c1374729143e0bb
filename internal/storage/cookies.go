package storage

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sprintbridge/backend/internal/shared/codec"
)

// Cookie is a stored cookie. Domain keeps its leading dot for domain
// cookies; host-only cookies carry the bare host.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
}

// Expired reports whether the cookie has an expiry in the past.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// HTTP converts the cookie for use on an outgoing request.
func (c Cookie) HTTP() *http.Cookie {
	return &http.Cookie{Name: c.Name, Value: c.Value}
}

func cookieKey(path, name string) []byte {
	return []byte(path + "\x00" + name)
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// domainMatches reports whether a cookie stored for cookieDomain belongs to
// filter, the way a browser cookie store filters getAll by domain: the same
// domain or any of its subdomains.
func domainMatches(cookieDomain, filter string) bool {
	cd := strings.TrimPrefix(cookieDomain, ".")
	f := strings.TrimPrefix(normalizeDomain(filter), ".")
	return cd == f || strings.HasSuffix(cd, "."+f)
}

// hostMatches reports whether a cookie for cookieDomain is sent to host.
func hostMatches(cookieDomain, host string) bool {
	host = strings.ToLower(host)
	if !strings.HasPrefix(cookieDomain, ".") {
		return cookieDomain == host
	}
	d := strings.TrimPrefix(cookieDomain, ".")
	return host == d || strings.HasSuffix(host, cookieDomain)
}

func pathMatches(cookiePath, requestPath string) bool {
	if requestPath == "" {
		requestPath = "/"
	}
	if cookiePath == "" || cookiePath == "/" || cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

// PutCookies stores cookies, replacing cookies with the same domain, path and name.
func (b *BoltStore) PutCookies(cookies ...Cookie) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(cookiesBucket)
		for _, c := range cookies {
			if c.Name == "" || c.Domain == "" {
				return fmt.Errorf("cookie requires name and domain")
			}
			c.Domain = normalizeDomain(c.Domain)
			if c.Path == "" {
				c.Path = "/"
			}
			bucket, err := root.CreateBucketIfNotExists([]byte(c.Domain))
			if err != nil {
				return fmt.Errorf("failed to create domain bucket: %w", err)
			}
			data, err := codec.Marshal(c)
			if err != nil {
				return fmt.Errorf("failed to encode cookie: %w", err)
			}
			if err := bucket.Put(cookieKey(c.Path, c.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveCookie deletes one cookie. Missing cookies are not an error.
func (b *BoltStore) RemoveCookie(domain, path, name string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(cookiesBucket).Bucket([]byte(normalizeDomain(domain)))
		if bucket == nil {
			return nil
		}
		if path == "" {
			path = "/"
		}
		return bucket.Delete(cookieKey(path, name))
	})
}

// scanCookies visits every unexpired cookie in store order: domain buckets
// in key order, then cookies by path and name.
func (b *BoltStore) scanCookies(keep func(Cookie) bool) ([]Cookie, error) {
	now := time.Now()
	var out []Cookie
	err := b.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(cookiesBucket)
		return root.ForEach(func(domain, v []byte) error {
			if v != nil {
				return nil
			}
			return root.Bucket(domain).ForEach(func(_, data []byte) error {
				var c Cookie
				if err := codec.Unmarshal(bytes.Clone(data), &c); err != nil {
					return fmt.Errorf("failed to decode cookie: %w", err)
				}
				if !c.Expired(now) && keep(c) {
					out = append(out, c)
				}
				return nil
			})
		})
	})
	return out, err
}

// AllCookies returns every cookie stored for domain or its subdomains.
func (b *BoltStore) AllCookies(domain string) ([]Cookie, error) {
	return b.scanCookies(func(c Cookie) bool {
		return domainMatches(c.Domain, domain)
	})
}

// CookiesForURL returns the cookies a browser would attach to a request for u.
func (b *BoltStore) CookiesForURL(u *url.URL) ([]Cookie, error) {
	host := u.Hostname()
	secure := u.Scheme == "https" || u.Scheme == "wss"
	return b.scanCookies(func(c Cookie) bool {
		if c.Secure && !secure {
			return false
		}
		return hostMatches(c.Domain, host) && pathMatches(c.Path, u.Path)
	})
}

// StoreResponseCookies records Set-Cookie values received from u. Cookies
// with a negative MaxAge or an expiry in the past are removed.
func (b *BoltStore) StoreResponseCookies(u *url.URL, cookies []*http.Cookie) error {
	now := time.Now()
	var keep []Cookie
	for _, hc := range cookies {
		c := Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   u.Hostname(),
			Path:     hc.Path,
			Secure:   hc.Secure,
			HTTPOnly: hc.HttpOnly,
			Expires:  hc.Expires,
		}
		if hc.Domain != "" {
			c.Domain = "." + strings.TrimPrefix(normalizeDomain(hc.Domain), ".")
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if hc.MaxAge > 0 {
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		}
		if hc.MaxAge < 0 || c.Expired(now) {
			if err := b.RemoveCookie(c.Domain, c.Path, c.Name); err != nil {
				return err
			}
			continue
		}
		keep = append(keep, c)
	}
	if len(keep) == 0 {
		return nil
	}
	return b.PutCookies(keep...)
}

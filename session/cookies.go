// CLAUDE:SUMMARY Cookie snapshot file I/O and host-suffix domain filtering with public-suffix rejection.
package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hazyhaar/eriflow/browser"
)

// snapshotCookie is the on-disk cookie shape. Expiry is Unix seconds; null
// or absent marks a session cookie.
type snapshotCookie struct {
	Name     string          `json:"name"`
	Value    string          `json:"value"`
	Domain   string          `json:"domain,omitempty"`
	Path     string          `json:"path,omitempty"`
	Expiry   json.RawMessage `json:"expiry,omitempty"`
	Secure   bool            `json:"secure"`
	HTTPOnly bool            `json:"httpOnly"`
}

// LoadSnapshot reads a cookie snapshot file. Entries whose expiry cannot
// be parsed are dropped; the count of dropped entries is returned.
func LoadSnapshot(path string) ([]browser.Cookie, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("session: read snapshot: %w", err)
	}
	var raw []snapshotCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("session: decode snapshot %s: %w", path, err)
	}

	out := make([]browser.Cookie, 0, len(raw))
	dropped := 0
	for _, sc := range raw {
		exp, ok := parseExpiry(sc.Expiry)
		if !ok || sc.Name == "" {
			dropped++
			continue
		}
		out = append(out, browser.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Domain:   sc.Domain,
			Path:     sc.Path,
			Expires:  exp,
			Secure:   sc.Secure,
			HTTPOnly: sc.HTTPOnly,
		})
	}
	return out, dropped, nil
}

// parseExpiry accepts a JSON number, a numeric string, null or nothing.
func parseExpiry(raw json.RawMessage) (time.Time, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, true
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return time.Time{}, false
	}
	if f == 0 {
		return time.Time{}, true
	}
	return time.Unix(int64(f), 0).UTC(), true
}

// SaveSnapshot writes cookies to path atomically.
func SaveSnapshot(path string, cookies []browser.Cookie) error {
	raw := make([]snapshotCookie, 0, len(cookies))
	for _, c := range cookies {
		sc := snapshotCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			sc.Expiry = json.RawMessage(strconv.FormatInt(c.Expires.Unix(), 10))
		}
		raw = append(raw, sc)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: write snapshot: %w", err)
	}
	return nil
}

// FilterForHost keeps the cookies a browser would send to targetURL's host:
// the cookie domain (leading dot ignored) must equal the host or be a
// dot-bounded suffix of it, and must not be a public suffix. Expired
// cookies are dropped. Cookies without a domain become host-only cookies.
func FilterForHost(cookies []browser.Cookie, targetURL string, now time.Time) []browser.Cookie {
	u, err := url.Parse(targetURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())

	var out []browser.Cookie
	for _, c := range cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Domain)), ".")
		if d == "" {
			c.Domain = host
			out = append(out, c)
			continue
		}
		if d != host && !strings.HasSuffix(host, "."+d) {
			continue
		}
		if ps, _ := publicsuffix.PublicSuffix(d); ps == d {
			continue
		}
		out = append(out, c)
	}
	return out
}

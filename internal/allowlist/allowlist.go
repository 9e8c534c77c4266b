// Package allowlist decides which remote hosts placecut will talk to: video
// sources submitted by users and the geocoding endpoint from config.
package allowlist

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Hosts is a normalized set of allowed host names. A host is allowed when it
// equals an entry or is a subdomain of one.
type Hosts struct {
	set map[string]struct{}
}

// New normalizes entries (case, scheme prefix, port, slashes). When nothing
// usable remains, defaults is used instead.
func New(entries []string, defaults ...string) Hosts {
	h := Hosts{set: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if v := normalizeHost(e); v != "" {
			h.set[v] = struct{}{}
		}
	}
	if len(h.set) == 0 {
		for _, d := range defaults {
			if v := normalizeHost(d); v != "" {
				h.set[v] = struct{}{}
			}
		}
	}
	return h
}

func normalizeHost(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "https://")
	v = strings.Trim(v, "/")
	if i := strings.IndexAny(v, ":/"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSuffix(v, ".")
}

// Allows reports whether host or one of its parent domains is in the set.
// "notyoutube.com" is not a subdomain of "youtube.com".
func (h Hosts) Allows(host string) bool {
	host = normalizeHost(host)
	for host != "" {
		if _, ok := h.set[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

func (h Hosts) Len() int { return len(h.set) }

var (
	ErrNotAbsolute = errors.New("absolute URL with host is required")
	ErrUserinfo    = errors.New("userinfo is not allowed")
)

// ParseURL parses raw as an absolute URL without userinfo whose scheme is one
// of schemes. It returns the URL and its lowercased host.
func ParseURL(raw string, schemes ...string) (*url.URL, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if !u.IsAbs() || host == "" {
		return nil, "", ErrNotAbsolute
	}
	if u.User != nil {
		return nil, "", ErrUserinfo
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range schemes {
		if scheme == s {
			return u, host, nil
		}
	}
	return nil, "", fmt.Errorf("%s is required", strings.Join(schemes, " or "))
}

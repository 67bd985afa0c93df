package model

import (
	"net/url"
	"strings"
)

// NormalizeURL prepares a user-supplied address for crawling.
// Surrounding space is trimmed and "https://" is prepended when the value
// has no http or https scheme.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + s
}

// VisitKey returns the key used to detect already visited pages.
// The fragment is dropped, scheme and host are lowercased, and an empty
// path is treated as "/".
func VisitKey(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

package config

import (
	"net/url"
	"strings"
	"time"
)

// SiteConfig holds request settings for one website.
// It is useful for sites that sit behind a cookie wall or expect a
// particular header.
type SiteConfig struct {
	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .magicscraper configuration file.
// Every setting is optional; unset values keep their defaults.
type File struct {
	BaseURL           string        `yaml:"baseURL,omitempty"`
	Model             string        `yaml:"model,omitempty"`
	PricePerMillion   *float64      `yaml:"pricePerMillion,omitempty"`
	Fields            []string      `yaml:"fields,omitempty"`
	MaxFollowPages    *int          `yaml:"maxFollowPages,omitempty"`
	ContactKeywords   []string      `yaml:"contactKeywords,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	LLMTimeout        time.Duration `yaml:"llmTimeout,omitempty"`
	CrawlDelay        time.Duration `yaml:"crawlDelay,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	MaxBodySize       int64         `yaml:"maxBodySize,omitempty"`
	MaxContentChars   *int          `yaml:"maxContentChars,omitempty"`
	RespectRobots     *bool         `yaml:"respectRobots,omitempty"`
	RenderJS          *bool         `yaml:"renderJS,omitempty"`
	RenderWait        time.Duration `yaml:"renderWait,omitempty"`
	Concurrency       int           `yaml:"concurrency,omitempty"`
	RequestsPerSecond *float64      `yaml:"requestsPerSecond,omitempty"`
	Output            string        `yaml:"output,omitempty"`
	Listen            string        `yaml:"listen,omitempty"`

	// Sites maps host names to their request settings.
	// Keys are host names without scheme, e.g. "www.example.com".
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the request settings for a host.
// A host without an entry also matches its "www."-less or "www."-prefixed
// form. Site settings are merged over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Cookie:  cf.Defaults.Cookie,
		Headers: copyHeaders(cf.Defaults.Headers),
	}

	host = strings.ToLower(host)
	site, ok := cf.Sites[host]
	if !ok {
		if trimmed, found := strings.CutPrefix(host, "www."); found {
			site, ok = cf.Sites[trimmed]
		} else {
			site, ok = cf.Sites["www."+host]
		}
	}
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// RequestHeaders returns the headers to send to the host of pageURL,
// with the cookie folded in. It returns nil when nothing is configured.
func (cf *File) RequestHeaders(pageURL string) map[string]string {
	if cf == nil {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	site := cf.GetSiteConfig(u.Hostname())
	if site.Cookie == "" && len(site.Headers) == 0 {
		return nil
	}
	headers := copyHeaders(site.Headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	if site.Cookie != "" {
		headers["Cookie"] = site.Cookie
	}
	return headers
}

func copyHeaders(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

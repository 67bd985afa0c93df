package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches robots.txt once per host and answers allow checks.
// A missing or unreadable robots.txt allows everything.
type robotsCache struct {
	client *http.Client
	agent  string
	logger *slog.Logger

	mu     sync.Mutex
	byHost map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *http.Client, agent string, logger *slog.Logger) *robotsCache {
	return &robotsCache{
		client: client,
		agent:  agent,
		logger: logger,
		byHost: make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the crawler may fetch u.
func (c *robotsCache) Allowed(ctx context.Context, u *url.URL) bool {
	data := c.get(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), c.agent)
}

func (c *robotsCache) get(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	c.mu.Lock()
	data, ok := c.byHost[key]
	c.mu.Unlock()
	if ok {
		return data
	}

	data = c.fetch(ctx, key+"/robots.txt")

	c.mu.Lock()
	c.byHost[key] = data
	c.mu.Unlock()
	return data
}

func (c *robotsCache) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.agent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.logger.Debug("robots.txt unreadable", "url", robotsURL, "error", err)
		return nil
	}
	return data
}

// robotsAgent picks the product token that robots.txt groups are matched
// against from a User-Agent header, skipping the generic Mozilla prefix.
func robotsAgent(userAgent string) string {
	tokens := strings.FieldsFunc(userAgent, func(r rune) bool {
		return r == ' ' || r == ';' || r == '(' || r == ')'
	})
	for _, t := range tokens {
		name, _, _ := strings.Cut(t, "/")
		switch strings.ToLower(name) {
		case "", "mozilla", "compatible":
			continue
		}
		return name
	}
	return "*"
}

package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/nao1215/magicscraper/internal/model"
)

// Renderer renders a page in a browser and returns its HTML and final URL.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, string, error)
}

// Fetcher downloads a page and turns it into markdown plus links.
// Every fetch goes through the same politeness limiter, so one Fetcher
// shared between workers keeps the configured delay globally.
type Fetcher struct {
	// client performs plain HTTP fetches.
	client *http.Client

	// timeout bounds a single fetch, browser renders included.
	timeout time.Duration

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// limiter spaces out requests. Nil means no delay.
	limiter *rate.Limiter

	// robots is nil unless robots.txt is honoured.
	robots        *robotsCache
	respectRobots bool

	// headers returns extra request headers for a URL.
	headers func(pageURL string) map[string]string

	// renderer replaces plain HTTP when set.
	renderer Renderer

	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout bounds every fetch.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithDelay sets the minimum pause between two fetches.
func WithDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithRespectRobots makes the fetcher honour robots.txt.
func WithRespectRobots(respect bool) FetcherOption {
	return func(f *Fetcher) {
		f.respectRobots = respect
	}
}

// WithRequestHeaders sets a per-URL source of extra headers, such as the
// cookies configured for a site.
func WithRequestHeaders(fn func(pageURL string) map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.headers = fn
	}
}

// WithRenderer renders pages with r instead of plain HTTP.
func WithRenderer(r Renderer) FetcherOption {
	return func(f *Fetcher) {
		f.renderer = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{},
		timeout:     30 * time.Second,
		userAgent:   "Mozilla/5.0 (compatible; MagicScraper/1.0)",
		maxBodySize: 5 * 1024 * 1024,
		logger:      slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.respectRobots {
		f.robots = newRobotsCache(f.client, robotsAgent(f.userAgent), f.logger)
	}
	return f
}

// Fetch downloads pageURL and returns it as a Page with markdown content,
// title and discovered links.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if f.robots != nil && !f.robots.Allowed(ctx, u) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, pageURL)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	f.logger.Debug("fetching page", "url", pageURL, "rendered", f.renderer != nil)

	if f.renderer != nil {
		document, location, err := f.renderer.Render(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", pageURL, err)
		}
		if location == "" {
			location = pageURL
		}
		return f.buildPage(pageURL, location, http.StatusOK, "text/html", []byte(document))
	}

	return f.fetchHTTP(ctx, pageURL)
}

// fetchHTTP performs a plain GET and decodes the body to UTF-8.
func (f *Fetcher) fetchHTTP(ctx context.Context, pageURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.7,it;q=0.5")
	if f.headers != nil {
		for k, v := range f.headers(pageURL) {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d from %s", ErrHTTPStatus, resp.StatusCode, pageURL)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType, raw) {
		return nil, fmt.Errorf("%w: %q from %s", ErrNotHTML, contentType, pageURL)
	}

	body := raw
	if decoded, err := charset.NewReader(bytes.NewReader(raw), contentType); err == nil {
		if utf8Body, err := io.ReadAll(decoded); err == nil {
			body = utf8Body
		}
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return f.buildPage(pageURL, finalURL, resp.StatusCode, contentType, body)
}

// buildPage parses links and renders markdown from an HTML document.
func (f *Fetcher) buildPage(pageURL, finalURL string, status int, contentType string, body []byte) (*model.Page, error) {
	parser, err := NewParser(finalURL)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", finalURL, err)
	}

	md, err := RenderMarkdown(body, finalURL)
	if err != nil {
		return nil, fmt.Errorf("render markdown %s: %w", finalURL, err)
	}

	page := &model.Page{
		URL:           pageURL,
		FinalURL:      finalURL,
		StatusCode:    status,
		ContentType:   contentType,
		Title:         parsed.Title,
		Markdown:      md,
		InternalLinks: parsed.InternalLinks,
		ExternalLinks: parsed.ExternalLinks,
		FetchedAt:     time.Now(),
	}
	page.ComputeHash()

	f.logger.Debug("page fetched",
		"url", finalURL,
		"status", status,
		"markdown_chars", len(md),
		"internal_links", len(page.InternalLinks),
	)
	return page, nil
}

// isHTML reports whether a response is an HTML document. Responses without
// a Content-Type are sniffed.
func isHTML(contentType string, body []byte) bool {
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

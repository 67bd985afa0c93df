package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const homepageHTML = `<html><head><title>Acme</title></head><body>
<h1>Acme S.p.A.</h1>
<p>Industrial valves.</p>
<a href="/about">About</a>
<a href="/contatti">Contatti</a>
<a href="https://www.linkedin.com/company/acme">LinkedIn</a>
<a href="https://partner.example.org/">Partner</a>
</body></html>`

// TestFetcher tests fetching and converting pages.
func TestFetcher(t *testing.T) {
	t.Parallel()

	t.Run("fetches and renders a page", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, homepageHTML)
		}))
		defer server.Close()

		page, err := NewFetcher().Fetch(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if page.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", page.StatusCode)
		}
		if page.Title != "Acme" {
			t.Errorf("expected title Acme, got %q", page.Title)
		}
		if !strings.Contains(page.Markdown, "# Acme S.p.A.") {
			t.Errorf("expected heading in markdown, got %q", page.Markdown)
		}
		if page.Hash == "" {
			t.Error("expected content hash")
		}

		want := []string{server.URL + "/about", server.URL + "/contatti"}
		if len(page.InternalLinks) != len(want) {
			t.Fatalf("expected internal links %v, got %v", want, page.InternalLinks)
		}
		for i := range want {
			if page.InternalLinks[i] != want[i] {
				t.Errorf("expected internal link %q, got %q", want[i], page.InternalLinks[i])
			}
		}
		if len(page.ExternalLinks) != 1 || page.ExternalLinks[0] != "https://partner.example.org/" {
			t.Errorf("unexpected external links %v", page.ExternalLinks)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>moved</p>")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		page, err := NewFetcher().Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.URL != server.URL+"/old" {
			t.Errorf("expected requested URL to be kept, got %q", page.URL)
		}
		if page.FinalURL != server.URL+"/new" {
			t.Errorf("expected final URL %q, got %q", server.URL+"/new", page.FinalURL)
		}
		if page.Location() != page.FinalURL {
			t.Errorf("expected location to be final URL, got %q", page.Location())
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewFetcher().Fetch(context.Background(), server.URL+"/missing")
		if !errors.Is(err, ErrHTTPStatus) {
			t.Fatalf("expected ErrHTTPStatus, got %v", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("expected status code in error, got %q", err.Error())
		}
	})

	t.Run("non HTML response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, "%PDF-1.4")
		}))
		defer server.Close()

		if _, err := NewFetcher().Fetch(context.Background(), server.URL+"/brochure.pdf"); !errors.Is(err, ErrNotHTML) {
			t.Fatalf("expected ErrNotHTML, got %v", err)
		}
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		if _, err := NewFetcher().Fetch(context.Background(), "ftp://files.acme.it/"); !errors.Is(err, ErrUnsupportedScheme) {
			t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
		}
	})

	t.Run("decodes legacy charsets", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("<p>Caff\xe8 Roma</p>"))
		}))
		defer server.Close()

		page, err := NewFetcher().Fetch(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Markdown != "Caffè Roma" {
			t.Errorf("expected decoded text, got %q", page.Markdown)
		}
	})

	t.Run("sends user agent and site headers", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>ok</p>")
		}))
		defer server.Close()

		fetcher := NewFetcher(
			WithUserAgent("TestAgent/1.0"),
			WithRequestHeaders(func(string) map[string]string {
				return map[string]string{"Cookie": "consent=yes"}
			}),
		)
		if _, err := fetcher.Fetch(context.Background(), server.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := <-headers
		if gotUA := got.Get("User-Agent"); gotUA != "TestAgent/1.0" {
			t.Errorf("expected custom user agent, got %q", gotUA)
		}
		if gotCookie := got.Get("Cookie"); gotCookie != "consent=yes" {
			t.Errorf("expected cookie header, got %q", gotCookie)
		}
	})

	t.Run("respects robots.txt", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>ok</p>")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		fetcher := NewFetcher(WithRespectRobots(true))

		if _, err := fetcher.Fetch(context.Background(), server.URL+"/private/data"); !errors.Is(err, ErrDisallowed) {
			t.Errorf("expected ErrDisallowed, got %v", err)
		}
		if _, err := fetcher.Fetch(context.Background(), server.URL+"/public"); err != nil {
			t.Errorf("expected public page to be allowed, got %v", err)
		}
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", http.NotFound)
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>ok</p>")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		fetcher := NewFetcher(WithRespectRobots(true))
		if _, err := fetcher.Fetch(context.Background(), server.URL+"/private"); err != nil {
			t.Errorf("expected page to be allowed, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		fetcher := NewFetcher(WithTimeout(50 * time.Millisecond))
		if _, err := fetcher.Fetch(context.Background(), server.URL+"/slow"); err == nil {
			t.Error("expected timeout error")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>ok</p>")
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewFetcher().Fetch(ctx, server.URL+"/"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

type fakeRenderer struct {
	html     string
	location string
	err      error
	calls    []string
}

func (f *fakeRenderer) Render(_ context.Context, pageURL string) (string, string, error) {
	f.calls = append(f.calls, pageURL)
	return f.html, f.location, f.err
}

// TestFetcherWithRenderer tests fetching through a browser renderer.
func TestFetcherWithRenderer(t *testing.T) {
	t.Parallel()

	t.Run("uses rendered document", func(t *testing.T) {
		t.Parallel()

		renderer := &fakeRenderer{
			html:     `<html><body><div id="app"><h2>Rendered</h2><a href="/contact">Contact</a></div></body></html>`,
			location: "https://www.acme.it/home",
		}
		fetcher := NewFetcher(WithRenderer(renderer))

		page, err := fetcher.Fetch(context.Background(), "https://acme.it")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(renderer.calls) != 1 {
			t.Fatalf("expected one render call, got %d", len(renderer.calls))
		}
		if page.FinalURL != "https://www.acme.it/home" {
			t.Errorf("unexpected final URL %q", page.FinalURL)
		}
		if !strings.Contains(page.Markdown, "## Rendered") {
			t.Errorf("expected rendered heading, got %q", page.Markdown)
		}
		if len(page.InternalLinks) != 1 || page.InternalLinks[0] != "https://www.acme.it/contact" {
			t.Errorf("unexpected internal links %v", page.InternalLinks)
		}
	})

	t.Run("render error", func(t *testing.T) {
		t.Parallel()

		renderErr := errors.New("browser crashed")
		fetcher := NewFetcher(WithRenderer(&fakeRenderer{err: renderErr}))

		if _, err := fetcher.Fetch(context.Background(), "https://acme.it"); !errors.Is(err, renderErr) {
			t.Errorf("expected render error, got %v", err)
		}
	})
}

// TestRobotsAgent tests deriving the robots.txt product token.
func TestRobotsAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ua   string
		want string
	}{
		{ua: "Mozilla/5.0 (compatible; MagicScraper/1.0; +https://example.com)", want: "MagicScraper"},
		{ua: "Googlebot/2.1", want: "Googlebot"},
		{ua: "", want: "*"},
		{ua: "Mozilla/5.0", want: "*"},
	}

	for _, tt := range tests {
		if got := robotsAgent(tt.ua); got != tt.want {
			t.Errorf("robotsAgent(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

// TestIsHTML tests content type detection.
func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		body        string
		want        bool
	}{
		{contentType: "text/html; charset=utf-8", want: true},
		{contentType: "TEXT/HTML", want: true},
		{contentType: "application/xhtml+xml", want: true},
		{contentType: "application/json", want: false},
		{contentType: "", body: "<!DOCTYPE html><html></html>", want: true},
		{contentType: "", body: "plain words", want: false},
	}

	for _, tt := range tests {
		if got := isHTML(tt.contentType, []byte(tt.body)); got != tt.want {
			t.Errorf("isHTML(%q, %q) = %v, want %v", tt.contentType, tt.body, got, tt.want)
		}
	}
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Page is a single fetched web page in the form the extraction loop needs:
// rendered markdown plus the links discovered on it.
type Page struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after redirects. Equal to URL when there were none.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP response status code.
	// Pages rendered in a headless browser report 200.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type,omitempty"`

	// Title is the text of the <title> element.
	Title string `json:"title,omitempty"`

	// Markdown is the readable page content sent to the extraction service.
	Markdown string `json:"-"`

	// InternalLinks are same-site links in document order, without duplicates.
	InternalLinks []string `json:"internal_links,omitempty"`

	// ExternalLinks are links to other sites. Social media links are dropped.
	ExternalLinks []string `json:"external_links,omitempty"`

	// Hash is the SHA-256 of Markdown.
	Hash string `json:"hash,omitempty"`

	// FetchedAt is when the page was fetched.
	FetchedAt time.Time `json:"fetched_at"`
}

// ComputeHash sets Hash from the rendered markdown.
// An empty page gets an empty hash.
func (p *Page) ComputeHash() {
	if p.Markdown == "" {
		p.Hash = ""
		return
	}
	sum := sha256.Sum256([]byte(p.Markdown))
	p.Hash = hex.EncodeToString(sum[:])
}

// HasContent reports whether the page has anything to extract from.
func (p *Page) HasContent() bool {
	return p != nil && p.Markdown != ""
}

// Location returns the final URL, falling back to the requested one.
func (p *Page) Location() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

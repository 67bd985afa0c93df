package crawler

import (
	"io"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
)

// socialDomains are dropped from link discovery.
var socialDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"instagram.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
}

// Parser extracts links and metadata from an HTML page.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL

	// baseSite is the registrable domain of baseURL, empty for IPs and localhost.
	baseSite string
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains every resolved href in document order.
	Links []string

	// InternalLinks are same-site links without fragment or duplicates.
	InternalLinks []string

	// ExternalLinks are links to other sites, social networks excluded.
	ExternalLinks []string

	// MetaTags maps meta name (or OpenGraph property) to content.
	MetaTags map[string]string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u, baseSite: registrableDomain(u.Hostname())}, nil
}

// Parse parses HTML content and extracts links and metadata.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:         make([]string, 0),
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
		MetaTags:      make(map[string]string),
	}
	seen := make(map[string]bool)

	// <base href> changes how relative links resolve.
	if base := findBase(doc); base != "" {
		if u, err := url.Parse(base); err == nil {
			p.baseURL = p.baseURL.ResolveReference(u)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result, seen)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult, seen map[string]bool) {
	switch n.Data {
	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
		}

	case "a":
		href := getAttr(n, "href")
		resolved := p.resolveURL(href)
		if resolved == "" {
			return
		}
		result.Links = append(result.Links, resolved)
		p.classifyLink(resolved, result, seen)

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property")
		}
		content := getAttr(n, "content")
		if name != "" && content != "" {
			result.MetaTags[strings.ToLower(name)] = content
		}
	}
}

// resolveURL resolves a relative URL against the base URL.
// Links that cannot lead to a page are dropped.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// classifyLink sorts a link into internal or external.
func (p *Parser) classifyLink(link string, result *ParseResult, seen map[string]bool) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}

	host := strings.ToLower(u.Hostname())
	if isSocial(host) {
		return
	}

	u.Fragment = ""
	u.RawFragment = ""
	clean := u.String()
	if seen[clean] {
		return
	}
	seen[clean] = true

	if p.IsInternal(u) {
		result.InternalLinks = append(result.InternalLinks, clean)
		return
	}
	result.ExternalLinks = append(result.ExternalLinks, clean)
}

// IsInternal reports whether u belongs to the same site as the base URL.
// The same host always matches; otherwise both hosts must share a
// registrable domain, so www.acme.it and shop.acme.it are one site.
func (p *Parser) IsInternal(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "" || strings.EqualFold(host, p.baseURL.Hostname()) {
		return true
	}
	if p.baseSite == "" {
		return false
	}
	return registrableDomain(host) == p.baseSite
}

// registrableDomain returns the eTLD+1 of host, or "" for IP addresses
// and single-label hosts.
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return ""
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return site
}

func isSocial(host string) bool {
	for _, d := range socialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func findBase(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		return getAttr(n, "href")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBase(c); href != "" {
			return href
		}
	}
	return ""
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

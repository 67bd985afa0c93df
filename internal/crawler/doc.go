// Package crawler fetches company web pages and turns them into the
// compact markdown the extraction service reads.
//
// # Components
//
//   - Fetcher: downloads one page over HTTP (or through a Renderer),
//     decodes it to UTF-8 and builds a model.Page
//   - Parser: extracts title, metadata and same-site links
//   - RenderMarkdown: converts HTML to markdown, keeping headings, lists,
//     tables, links and footers
//   - Browser: a headless Chrome Renderer for JavaScript-built sites
//   - PrioritizeLinks: orders follow-up links, contact pages first
//
// # Politeness
//
// A Fetcher can honour robots.txt, wait a fixed delay between requests and
// cap the body size it reads. One Fetcher is shared by all workers so the
// delay applies to the whole run.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(crawler.WithTimeout(30 * time.Second))
//	page, err := fetcher.Fetch(ctx, "https://www.acme.it")
//	links := crawler.PrioritizeLinks(page.InternalLinks, crawler.DefaultContactKeywords, 5)
package crawler

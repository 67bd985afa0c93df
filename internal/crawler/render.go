package crawler

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// droppedElements never carry readable company information.
const droppedElements = "head, script, style, noscript, svg, iframe, template, canvas"

var whitespaceRegex = regexp.MustCompile(`\s+`)

// RenderMarkdown converts an HTML document into compact markdown.
//
// Headings, paragraphs, list items, table rows and links survive; scripts,
// styles and other non-content elements are dropped. Relative links are
// resolved against baseURL. Footers are kept because addresses and tax
// numbers usually live there.
//
// When the document yields no text at all the main-content extractor is
// tried as a last resort.
func RenderMarkdown(body []byte, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}

	doc.Find(droppedElements).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	w := &markdownWriter{base: base}
	w.children(root)

	md := cleanMarkdown(w.String())
	if md != "" {
		return md, nil
	}
	return extractMainText(body), nil
}

// extractMainText returns the main text found by trafilatura, or "".
func extractMainText(body []byte) string {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{})
	if err != nil || result == nil {
		return ""
	}
	return strings.TrimSpace(result.ContentText)
}

// markdownWriter accumulates markdown while walking a goquery selection.
type markdownWriter struct {
	strings.Builder
	base *url.URL
}

func (w *markdownWriter) block() {
	w.WriteString("\n\n")
}

func (w *markdownWriter) newline() {
	w.WriteString("\n")
}

func (w *markdownWriter) children(s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		w.render(c)
	})
}

func (w *markdownWriter) render(s *goquery.Selection) {
	if s.Length() == 0 {
		return
	}
	node := s.Get(0)
	switch node.Type {
	case html.TextNode:
		w.WriteString(whitespaceRegex.ReplaceAllString(node.Data, " "))
		return
	case html.ElementNode:
	default:
		return
	}

	name := goquery.NodeName(s)
	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := inlineText(s)
		if text == "" {
			return
		}
		w.block()
		w.WriteString(strings.Repeat("#", int(name[1]-'0')))
		w.WriteString(" ")
		w.WriteString(text)
		w.block()

	case "p", "div", "section", "article", "header", "footer", "main", "nav",
		"aside", "address", "form", "ul", "ol", "dl", "table", "figure":
		w.block()
		w.children(s)
		w.block()

	case "br":
		w.newline()

	case "hr":
		w.block()
		w.WriteString("---")
		w.block()

	case "li":
		w.newline()
		w.WriteString("- ")
		w.children(s)
		w.newline()

	case "dt", "dd":
		w.newline()
		w.children(s)
		w.newline()

	case "tr":
		cells := make([]string, 0)
		s.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, inlineText(c))
		})
		if len(cells) == 0 {
			return
		}
		w.newline()
		w.WriteString("| " + strings.Join(cells, " | ") + " |")
		w.newline()

	case "a":
		w.link(s)

	case "strong", "b":
		w.emphasis(s, "**")

	case "em", "i":
		w.emphasis(s, "_")

	case "code":
		if text := inlineText(s); text != "" {
			w.WriteString("`" + text + "`")
		}

	case "pre":
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		w.block()
		w.WriteString("```\n" + text + "\n```")
		w.block()

	case "blockquote":
		if text := inlineText(s); text != "" {
			w.block()
			w.WriteString("> " + text)
			w.block()
		}

	case "img":
		if alt := strings.TrimSpace(s.AttrOr("alt", "")); alt != "" {
			w.WriteString(" " + alt + " ")
		}

	default:
		w.children(s)
	}
}

func (w *markdownWriter) link(s *goquery.Selection) {
	text := inlineText(s)
	href, _ := s.Attr("href")
	href = strings.TrimSpace(href)

	if text == "" {
		return
	}
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		w.WriteString(text)
		return
	}
	if u, err := url.Parse(href); err == nil {
		href = w.base.ResolveReference(u).String()
	}
	w.WriteString(" [" + text + "](" + href + ") ")
}

func (w *markdownWriter) emphasis(s *goquery.Selection, marker string) {
	if text := inlineText(s); text != "" {
		w.WriteString(" " + marker + text + marker + " ")
	}
}

func inlineText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// cleanMarkdown trims every line, squeezes runs of spaces and keeps at most
// one blank line between blocks. Fenced code is left untouched.
func cleanMarkdown(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	blank := false

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			out = append(out, strings.TrimSpace(line))
			blank = false
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

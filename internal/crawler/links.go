package crawler

import "strings"

// DefaultContactKeywords mark contact pages in English and Italian.
var DefaultContactKeywords = []string{"contact", "contatti", "contattaci"}

// PrioritizeLinks orders links for follow-up crawling and applies the page
// budget.
//
// Links whose lowercased URL contains any keyword come first, the rest
// follow; both groups keep their original order. The result is cut to
// limit entries. Already visited links are not removed here, so they still
// consume budget.
func PrioritizeLinks(links, keywords []string, limit int) []string {
	if limit <= 0 || len(links) == 0 {
		return nil
	}

	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	prioritized := make([]string, 0, len(links))
	others := make([]string, 0, len(links))
	for _, link := range links {
		if link == "" {
			continue
		}
		if matchesAny(strings.ToLower(link), lowered) {
			prioritized = append(prioritized, link)
		} else {
			others = append(others, link)
		}
	}

	ordered := append(prioritized, others...)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

func matchesAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

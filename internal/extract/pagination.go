package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var nextClassKeywords = []string{"next", "pagination-next", "nav-next"}

var nextTexts = map[string]bool{
	"next page":   true,
	"next >":      true,
	"older posts": true,
	"next":        true,
}

// discoverPagination applies rel/class/anchor-text heuristics against
// the full document (not the scored main block) and returns a
// deduplicated set of URLs.
func discoverPagination(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(raw string) {
		resolved, ok := resolveURL(base, raw)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		out = append(out, resolved)
	}

	doc.Find(`a[rel="next"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, ok := s.Attr("class")
		if !ok {
			return
		}
		lowerClass := strings.ToLower(class)
		matched := false
		for _, kw := range nextClassKeywords {
			if strings.Contains(lowerClass, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		if href, ok := s.Attr("href"); ok && goquery.NodeName(s) == "a" {
			add(href)
			return
		}
		if href, ok := s.Find("a[href]").First().Attr("href"); ok {
			add(href)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "" || len(text) >= 20 {
			return
		}
		if nextTexts[text] || text == "next" || strings.HasPrefix(text, "next ") {
			add(href)
		}
	})

	return out
}

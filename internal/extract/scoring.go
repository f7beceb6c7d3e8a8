package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var positiveKeywords = []string{"content", "article", "main", "post", "entry", "text", "body"}
var negativeKeywords = []string{"sidebar", "footer", "nav", "menu", "ads", "ad", "comment", "aside", "widget"}

// selectMainContent scores every div/article/section/main block and
// returns the highest scorer, or the whole document if every score is
// negative.
func selectMainContent(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestScore := 0
	first := true

	doc.Find("div, article, section, main").Each(func(_ int, s *goquery.Selection) {
		score := scoreBlock(s)
		if first || score > bestScore {
			best = s
			bestScore = score
			first = false
		}
	})

	if best == nil || bestScore < 0 {
		return doc.Selection
	}
	return best
}

func scoreBlock(s *goquery.Selection) int {
	score := 0

	class, _ := s.Attr("class")
	lowerClass := strings.ToLower(class)
	for _, kw := range positiveKeywords {
		if strings.Contains(lowerClass, kw) {
			score += 10
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lowerClass, kw) {
			score -= 20
		}
	}

	score += s.Find("h1").Length() * 10
	score += s.Find("h2").Length() * 5
	score += s.Find("p").Length() * 2
	score += s.Find("img").Length() * 3

	textLen := len(strings.TrimSpace(s.Text()))
	if textLen < 50 {
		score -= 10
	} else if textLen > 500 {
		score += 15
	}

	return score
}

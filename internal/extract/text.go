package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapevault/scrapevault/internal/models"
)

// extractStructuredText applies a priority chain: quote blocks, then
// <article>, then main/#content/.content. The first
// rule to produce a non-empty result wins.
func extractStructuredText(block *goquery.Selection, doc *goquery.Document) []*models.Resource {
	if quotes := extractQuotes(block); len(quotes) > 0 {
		return quotes
	}
	if article := extractArticle(block, doc); article != nil {
		return []*models.Resource{article}
	}
	if main := extractNamedContent(block, doc); main != nil {
		return []*models.Resource{main}
	}
	return nil
}

func extractQuotes(block *goquery.Selection) []*models.Resource {
	var out []*models.Resource
	block.Find(".quote").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Find(".text").First().Text())
		if text == "" {
			return
		}
		author := strings.TrimSpace(s.Find(".author").First().Text())

		var tags []string
		s.Find(".tag").Each(func(_ int, tagSel *goquery.Selection) {
			if t := strings.TrimSpace(tagSel.Text()); t != "" {
				tags = append(tags, t)
			}
		})

		out = append(out, &models.Resource{
			Type:    models.ResourceRichText,
			Content: text,
			Metadata: map[string]any{
				"author": author,
				"tags":   tags,
				"type":   "quote",
			},
		})
	})
	return out
}

// selfOrDescendants matches sel against block itself and against its
// descendants: goquery's Find only searches descendants, which misses
// the common case where selectMainContent already picked the <article>
// or #content/.content element itself.
func selfOrDescendants(block *goquery.Selection, sel string) *goquery.Selection {
	return block.Filter(sel).Union(block.Find(sel))
}

func extractArticle(block *goquery.Selection, doc *goquery.Document) *models.Resource {
	article := selfOrDescendants(block, "article").First()
	text := strings.TrimSpace(article.Text())
	if len(text) <= 100 {
		return nil
	}
	return &models.Resource{
		Type:    models.ResourceText,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: text,
	}
}

func extractNamedContent(block *goquery.Selection, doc *goquery.Document) *models.Resource {
	sel := selfOrDescendants(block, "main, #content, .content").First()
	text := strings.TrimSpace(sel.Text())
	if len(text) <= 200 {
		return nil
	}
	return &models.Resource{
		Type:    models.ResourceText,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: text,
	}
}

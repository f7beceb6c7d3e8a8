package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapevault/scrapevault/internal/models"
)

var m3u8Pattern = regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.m3u8[^\s"'<>]*`)

// extractMedia pulls images, videos, audio, and HLS playlists out of
// block, resolving every URL against base.
func extractMedia(block *goquery.Selection, base *url.URL) []*models.Resource {
	var out []*models.Resource

	block.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := firstAttr(s, "src", "data-src", "data-lazy-src")
		if !ok {
			return
		}
		if isTooSmall(s) {
			return
		}
		resolved, ok := resolveURL(base, src)
		if !ok {
			return
		}
		out = append(out, &models.Resource{URL: resolved, Type: models.ResourceImage})
	})

	block.Find("video, video source").Each(func(_ int, s *goquery.Selection) {
		src, ok := firstAttr(s, "src", "data-src")
		if !ok {
			return
		}
		resolved, ok := resolveURL(base, src)
		if !ok {
			return
		}
		out = append(out, &models.Resource{URL: resolved, Type: models.ResourceVideo})
	})

	block.Find("audio, audio source").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		resolved, ok := resolveURL(base, src)
		if !ok {
			return
		}
		out = append(out, &models.Resource{URL: resolved, Type: models.ResourceAudio})
	})

	block.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.Contains(strings.ToLower(href), ".m3u8") {
			if resolved, ok := resolveURL(base, href); ok {
				out = append(out, &models.Resource{URL: resolved, Type: models.ResourceHLSPlaylist})
			}
		}
	})

	block.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, match := range m3u8Pattern.FindAllString(s.Text(), -1) {
			out = append(out, &models.Resource{URL: match, Type: models.ResourceHLSPlaylist})
		}
	})

	return out
}

// extractAnchorResources classifies <a href> targets by known file
// extension into their corresponding resource type.
func extractAnchorResources(block *goquery.Selection, base *url.URL) []*models.Resource {
	var out []*models.Resource
	block.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, ok := resolveURL(base, href)
		if !ok {
			return
		}
		t, ok := classifyByExtension(resolved)
		if !ok {
			return
		}
		out = append(out, &models.Resource{URL: resolved, Type: t})
	})
	return out
}

func firstAttr(s *goquery.Selection, names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// isTooSmall reports whether an <img> declares both width and height
// under 100px, a cheap filter against tracking pixels and icons.
func isTooSmall(s *goquery.Selection) bool {
	w, wok := s.Attr("width")
	h, hok := s.Attr("height")
	if !wok || !hok {
		return false
	}
	wi, werr := strconv.Atoi(strings.TrimSpace(w))
	hi, herr := strconv.Atoi(strings.TrimSpace(h))
	if werr != nil || herr != nil {
		return false
	}
	return wi < 100 && hi < 100
}

package fetch

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// csrfFieldNames are the hidden-input names checked, in order, when
// scraping a login page for a CSRF token before posting credentials.
var csrfFieldNames = []string{
	"csrf_token",
	"csrfmiddlewaretoken",
	"_token",
	"authenticity_token",
	"_csrf",
	"csrf",
	"__RequestVerificationToken",
	"XSRF-TOKEN",
}

var csrfMetaPattern = regexp.MustCompile(`(?i)csrf`)

// failureMarkers are substrings that, if present in a post-login page
// body, mark the attempt as failed even though the HTTP status itself
// was 2xx (login forms rarely return a non-2xx status on bad
// credentials).
var failureMarkers = []string{
	"invalid username or password",
	"invalid credentials",
	"login failed",
	"incorrect password",
	"authentication failed",
}

// Login performs a CSRF-aware form login: GET loginURL, scrape a token
// from a hidden input (by name) or a <meta> tag matching /csrf/i, POST
// formFields plus the discovered token, then judge success via
// c.LoginCheck if set, falling back to the failureMarkers heuristic.
func (c *Client) Login(ctx context.Context, loginURL string, formFields map[string]string) (bool, error) {
	getResp, err := c.Get(ctx, loginURL, nil, false, "")
	if err != nil {
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(getResp.Body)))
	if err != nil {
		return false, err
	}

	form := url.Values{}
	for k, v := range formFields {
		form.Set(k, v)
	}
	if name, value, ok := findCSRFToken(doc); ok {
		form.Set(name, value)
	}

	postResp, err := c.Post(ctx, loginURL, form, nil, map[string]string{
		"Referer": loginURL,
	})
	if err != nil {
		return false, err
	}

	if c.LoginCheck != nil {
		return c.LoginCheck(postResp), nil
	}
	return !containsFailureMarker(string(postResp.Body)), nil
}

func findCSRFToken(doc *goquery.Document) (name, value string, ok bool) {
	for _, field := range csrfFieldNames {
		sel := doc.Find(`input[name="` + field + `"]`)
		if sel.Length() == 0 {
			continue
		}
		if v, exists := sel.Attr("value"); exists {
			return field, v, true
		}
	}

	meta := doc.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		return csrfMetaPattern.MatchString(name)
	})
	if meta.Length() > 0 {
		if content, exists := meta.First().Attr("content"); exists {
			return "csrf_token", content, true
		}
	}

	return "", "", false
}

func containsFailureMarker(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range failureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

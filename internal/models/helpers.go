package models

import (
	"net/url"
)

// ValidateURL checks that s is an absolute http(s) URL suitable for a
// crawl seed.
func ValidateURL(s string) error {
	parsed, err := url.Parse(s)
	if err != nil {
		return NewError(KindInvalidInput, "models.ValidateURL", s, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewError(KindInvalidInput, "models.ValidateURL", s, nil)
	}
	if parsed.Host == "" {
		return NewError(KindInvalidInput, "models.ValidateURL", s, nil)
	}
	return nil
}

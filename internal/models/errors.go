package models

import "fmt"

// Kind classifies an Error into one of a small set of taxonomies a
// caller can branch on without string-matching.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNetwork      Kind = "network_error"
	KindHTTP         Kind = "http_error"
	KindParse        Kind = "parse_error"
	KindStorage      Kind = "storage_error"
	KindDiskSpace    Kind = "disk_space_error"
	KindCancelled    Kind = "cancelled"
)

// Error is the typed error value propagated across component
// boundaries, carrying enough context for a caller (or a log line) to
// act on it without string-matching.
type Error struct {
	Kind    Kind
	Op      string // component/operation that raised it, e.g. "fetch.Get"
	Target  string // URL, file path, or other subject, if any
	Cause   error
}

func (e *Error) Error() string {
	if e.Target != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s[%s]: %s: %v", e.Op, e.Kind, e.Target, e.Cause)
		}
		return fmt.Sprintf("%s[%s]: %s", e.Op, e.Kind, e.Target)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s[%s]", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error, the constructor every component should
// use instead of fmt.Errorf when the caller needs to branch on Kind.
func NewError(kind Kind, op, target string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Cause: cause}
}

// IsKind reports whether err (or anything it wraps) is a *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Kind == kind {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

package models

import (
	"errors"
	"fmt"
)

// Error kinds used in crawl reports and internal error handling.
const (
	ErrKindLaunch              = "LAUNCH_FAILED"
	ErrKindNavigation          = "NAVIGATION_FAILED"
	ErrKindChallenge           = "CHALLENGE_DETECTED"
	ErrKindExtraction          = "EXTRACTION_FAILED"
	ErrKindNavigationExhausted = "NAVIGATION_EXHAUSTED"
	ErrKindStorage             = "STORAGE_FAILED"
	ErrKindInvalidConfig       = "INVALID_CONFIG"
	ErrKindUnauthorized        = "UNAUTHORIZED"
	ErrKindRateLimited         = "RATE_LIMITED"
)

// Sentinels for errors.Is checks. A CrawlError matches the sentinel of its kind.
var (
	ErrLaunch              = &CrawlError{Kind: ErrKindLaunch}
	ErrNavigation          = &CrawlError{Kind: ErrKindNavigation}
	ErrChallenge           = &CrawlError{Kind: ErrKindChallenge}
	ErrExtraction          = &CrawlError{Kind: ErrKindExtraction}
	ErrNavigationExhausted = &CrawlError{Kind: ErrKindNavigationExhausted}
	ErrStorage             = &CrawlError{Kind: ErrKindStorage}
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CrawlError is the internal error type carrying an error kind.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Kind    string
	Message string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Message == "" && e.Err == nil {
		return e.Kind
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// Is reports a match against any CrawlError of the same kind.
func (e *CrawlError) Is(target error) bool {
	t, ok := target.(*CrawlError)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the failure is transient.
func (e *CrawlError) Retryable() bool {
	return e.Kind == ErrKindNavigation || e.Kind == ErrKindExtraction
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(kind, message string, err error) *CrawlError {
	return &CrawlError{Kind: kind, Message: message, Err: err}
}

// NewLaunchError wraps a browser start failure.
func NewLaunchError(message string, err error) *CrawlError {
	return NewCrawlError(ErrKindLaunch, message, err)
}

// NewNavigationError wraps a page load, click or timeout failure.
func NewNavigationError(message string, err error) *CrawlError {
	return NewCrawlError(ErrKindNavigation, message, err)
}

// IsKind reports whether err is a CrawlError of the given kind.
func IsKind(err error, kind string) bool {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CrawlError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Kind, Message: e.Message}
}

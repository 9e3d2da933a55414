package models

import (
	"strings"
	"time"
)

// Class groups routes that share a request budget.
type Class string

const (
	// ClassLinkage covers the score routes; link and refresh call the score API.
	ClassLinkage Class = "linkage"
	// ClassIssuance covers credential preparation and retrieval.
	ClassIssuance Class = "issuance"
)

// Limit is a sliding-window request budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one budget check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until the oldest request leaves the window.
	RetryAfter int
}

// ExceededResponse is the body written with a 429.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// SanitizeKeySegment escapes the key delimiter so a caller-controlled
// segment cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// Key builds the bucket key for a class and subject.
func Key(class Class, kind, subject string) string {
	return "ratelimit:" + string(class) + ":" + kind + ":" + SanitizeKeySegment(subject)
}

// RetryAfterSeconds rounds the wait up to a whole second, minimum one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

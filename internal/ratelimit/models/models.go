package models

import "time"

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the number of whole seconds a denied caller should wait.
	RetryAfter int
	// Degraded is set when the shared store is down and a local window answered.
	Degraded bool
}

// RetryAfterSeconds rounds the time until resetAt up to whole seconds, never below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

package source

import (
	"fmt"
	"time"
)

// ParseError indicates a cache file or API payload that is not the expected JSON shape.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse error: " + e.Reason
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the document API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	URL        string
	Attempts   int
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: status=%d attempts=%d", e.StatusCode, e.Attempts)
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Message != "" {
		msg += " message=" + e.Message
	}
	return msg
}

// AuthError indicates authentication/authorization failures (401/403). Never retried.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (token invalid, expired or forbidden): %s", e.APIError.Error())
}

func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError indicates 429 responses that persisted through every retry.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

func (e *RateLimitError) Unwrap() error { return e.APIError }

// ServerError indicates 5xx responses that persisted through every retry.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("server error: %s", e.APIError.Error()) }

func (e *ServerError) Unwrap() error { return e.APIError }

// NetworkError indicates the API could not be reached.
type NetworkError struct {
	Host     string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "network error"
	}
	if e.Host != "" {
		return fmt.Sprintf("network error: %s unreachable after %d attempt(s): %v", e.Host, e.Attempts, e.Err)
	}
	return fmt.Sprintf("network error after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

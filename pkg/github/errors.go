package github

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote API failure so callers can decide how to
// surface it. The client never retries on its own.
type ErrorKind string

const (
	ErrKindUnauthorized   ErrorKind = "unauthorized"
	ErrKindNotFound       ErrorKind = "not_found"
	ErrKindRemoteConflict ErrorKind = "remote_conflict"
	ErrKindRateLimited    ErrorKind = "rate_limited"
	ErrKindUnknown        ErrorKind = "unknown"
)

// APIError is a classified failure from the GitHub API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// kindFromStatus maps an HTTP status code to an error kind.
// rateLimited distinguishes a 403 quota rejection from a plain 403.
func kindFromStatus(status int, rateLimited bool) ErrorKind {
	switch {
	case status == 401:
		return ErrKindUnauthorized
	case status == 403 && rateLimited:
		return ErrKindRateLimited
	case status == 403:
		return ErrKindUnauthorized
	case status == 404:
		return ErrKindNotFound
	case status == 409 || status == 422:
		return ErrKindRemoteConflict
	case status == 429:
		return ErrKindRateLimited
	default:
		return ErrKindUnknown
	}
}

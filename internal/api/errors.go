package api

import (
	"fmt"
	"net/http"
)

// AuthError is returned when the token endpoint rejects the credentials or cannot be reached.
// Callers cannot tell the two apart.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError is returned when a filter-options or world-data call fails.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s failed: %s", e.Endpoint, http.StatusText(e.Status))
	}
	return fmt.Sprintf("fetch %s failed: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Class represents a classification of request errors.
type Class string

const (
	// ClassClient represents non-retryable 4xx client errors.
	ClassClient Class = "client"

	// ClassServer represents 5xx server errors.
	ClassServer Class = "server"

	// ClassRateLimit represents an upstream 429. The local token bucket
	// should prevent these; clock skew between client and server can still
	// produce one, and it is retried after backoff.
	ClassRateLimit Class = "rate_limit"

	// ClassNotFound represents a 404: the resource no longer exists
	// upstream. Not retried; callers treat it as a skip, not a failure.
	ClassNotFound Class = "not_found"

	// ClassNetwork represents network/timeout errors.
	ClassNetwork Class = "network"
)

// Common errors returned by the client.
var (
	// ErrNotFound matches any 404 APIError via errors.Is.
	ErrNotFound = errors.New("resource not found")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// APIError carries the upstream status and classification.
type APIError struct {
	StatusCode int
	Class      Class
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match any 404.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// classify categorizes a response/error pair.
func classify(resp *http.Response, err error) Class {
	if err != nil {
		return ClassNetwork
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ClassRateLimit
	case resp.StatusCode == http.StatusNotFound:
		return ClassNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ClassClient
	case resp.StatusCode >= 500:
		return ClassServer
	default:
		return ""
	}
}

// shouldRetry determines if an error class is worth retrying.
func shouldRetry(class Class) bool {
	switch class {
	case ClassServer, ClassRateLimit, ClassNetwork:
		return true
	default:
		// 4xx wastes quota on retries; 404 means gone.
		return false
	}
}

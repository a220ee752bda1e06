package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the rate limit tracker blocks a request.
	ErrRateLimited = errors.New("request blocked: rate limit critical")
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// RemoteError is a non-success response from GitHub.
type RemoteError struct {
	StatusCode int
	ErrorClass ErrorClass

	// Message is GitHub's JSON "message", else the body text, else the
	// status line.
	Message string

	// DocumentationURL is GitHub's "documentation_url", when present.
	DocumentationURL string

	// Body is the raw response body, capped at maxErrorBody bytes.
	Body string

	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Format implements fmt.Formatter. %+v appends the documentation URL and
// the raw response body to the one-line message.
func (e *RemoteError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		io.WriteString(s, e.Error())
		if !s.Flag('+') {
			return
		}
		if e.DocumentationURL != "" {
			fmt.Fprintf(s, "\n  documentation: %s", e.DocumentationURL)
		}
		if e.Body != "" {
			fmt.Fprintf(s, "\n  body: %s", e.Body)
		}
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// newRemoteError builds a RemoteError from resp and closes its body.
func newRemoteError(resp *http.Response, class ErrorClass) *RemoteError {
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(raw))

	remoteErr := &RemoteError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Body:       body,
	}

	var payload struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		remoteErr.Message = payload.Message
		remoteErr.DocumentationURL = payload.DocumentationURL
	}

	switch {
	case remoteErr.Message != "":
	case body != "":
		remoteErr.Message = body
	case resp.Status != "":
		remoteErr.Message = resp.Status
	default:
		remoteErr.Message = http.StatusText(resp.StatusCode)
	}

	return remoteErr
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will not succeed on retry.
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

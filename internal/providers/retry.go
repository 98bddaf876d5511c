package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// ErrTransient matches failures worth retrying.
var ErrTransient = errors.New("transient provider error")

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrTransient)

// ErrMalformedResponse is returned when a backend's answer cannot be parsed.
var ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrTransient)

// TimeoutError reports an attempt that exceeded the request timeout.
type TimeoutError struct {
	Provider string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s", e.Provider, e.After)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

type statusError struct {
	statusCode int
	body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.statusCode, truncate(e.body, 300))
}

func (e *statusError) retryable() bool {
	return e.statusCode == 429 || e.statusCode >= 500
}

// classifyStatus turns a non-200 HTTP status into a typed error.
func classifyStatus(code int, body string) error {
	if code == 401 || code == 403 {
		return &authError{message: truncate(body, 300)}
	}
	return &statusError{statusCode: code, body: body}
}

func isRetryable(err error) bool {
	if err == nil || IsAuthError(err) {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// retryWithBackoff calls fn until it succeeds, fails permanently, or
// maxRetries retries have been spent. The wait before retry n is base*2^n.
func retryWithBackoff(ctx context.Context, maxRetries int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := base * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package retry wraps fallible operations with bounded exponential-backoff
// retry, distinguishing transient failures from fatal ones.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"syscall"
	"time"
)

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2
)

// StatusError carries an HTTP status code so the executor can classify it
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// Backoff returns the delay before the given retry attempt (0-based)
func Backoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= backoffFactor
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Transient reports whether an error is worth retrying: rate limits (429),
// server errors (5xx), and bare network failures. Everything else is fatal.
func Transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// Do invokes fn up to 3 times, backing off between transient failures.
// Fatal errors propagate immediately; exhausting all attempts returns the
// last error annotated with the label.
func Do(ctx context.Context, label string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			log.Printf("Warning: retrying %s (attempt %d/%d): %v", label, attempt+1, maxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Backoff(attempt - 1)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return fmt.Errorf("%s: %w", label, lastErr)
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", label, lastErr)
}

// DoValue is Do for operations that produce a value
func DoValue[T any](ctx context.Context, label string, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, label, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt,
	// so an operation runs at most MaxRetries+1 times.
	MaxRetries int

	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps both the grown backoff delay and upstream Retry-After hints.
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff.
	Multiplier float64

	// Jitter randomizes each delay to a factor in [0.5, 1.0) of the base.
	// An upstream Retry-After hint overrides jitter entirely; the two never combine.
	Jitter bool
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// CatalogFetchConfig returns configuration optimized for catalog item fetching.
// Aggressive retry for transient network issues.
func CatalogFetchConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// PushDispatchConfig returns configuration optimized for push gateway calls.
// Short and shallow: a stuck delivery should not stall the pipeline.
func PushDispatchConfig() Config {
	return Config{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Do executes fn with retry and exponential backoff. It returns nil on the
// first success, the error unchanged when it is not retryable, or the last
// error wrapped once all attempts are exhausted.
//
// The delay before each retry honors an upstream Retry-After hint when the
// error carries one (capped at MaxDelay, no jitter, no backoff growth);
// otherwise the base delay is jittered to [0.5, 1.0) of its value and then
// grown by Multiplier up to MaxDelay.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt+1))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt+1),
				slog.Any("error", lastErr))
			return lastErr
		}

		if attempt == cfg.MaxRetries {
			break
		}

		var sleep time.Duration
		if ra, ok := retryAfterHint(lastErr); ok {
			sleep = ra
			if sleep > cfg.MaxDelay {
				sleep = cfg.MaxDelay
			}
		} else {
			sleep = delay
			if cfg.Jitter {
				// #nosec G404 -- math/rand is fine for backoff jitter.
				sleep = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
			}
			delay = time.Duration(float64(sleep) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", cfg.MaxRetries),
			slog.Duration("delay", sleep),
			slog.Any("error", lastErr))

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// HTTP status codes
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		// 5xx server errors are retryable
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		// 429 Too Many Requests is retryable
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		// 408 Request Timeout is retryable
		if httpErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// HTTPError represents an upstream HTTP error with status code, response body,
// and an optional Retry-After hint.
type HTTPError struct {
	StatusCode    int
	Body          string
	RetryAfter    time.Duration
	HasRetryAfter bool
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// retryAfterHint extracts an upstream Retry-After hint from the error chain.
func retryAfterHint(err error) (time.Duration, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.HasRetryAfter {
		return httpErr.RetryAfter, true
	}
	return 0, false
}

// ParseRetryAfter parses a Retry-After header value, which is either a number
// of seconds or an HTTP-date. Past dates yield a zero duration.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

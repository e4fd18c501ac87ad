// Package retry wraps unreliable upstream calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// Class is the outcome of classifying an upstream error.
type Class int

const (
	Permanent Class = iota
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "permanent"
}

// Policy describes how many times a call is attempted and how long to wait in between.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      logrus.FieldLogger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is 4 attempts with a 3s base: waits of 3s, 6s and 12s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 3 * time.Second}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Delay returns the wait before the attempt that follows attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do runs fn until it succeeds, returns a permanent error, or MaxAttempts is reached.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; attempt < attempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.WithField("attempt", attempt+1).Info("[Retry] succeeded on retry")
			}
			return res, nil
		}
		if Classify(err) != Retryable {
			return zero, err
		}
		if attempt == attempts-1 {
			logger.WithError(err).WithField("attempts", attempts).Warn("[Retry] retries exhausted")
			return zero, &ExhaustedError{Attempts: attempts, Err: err}
		}
		delay := p.Delay(attempt)
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"of":      attempts,
			"delay":   delay.String(),
		}).Warn("[Retry] upstream busy, backing off")
		if serr := sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry wait interrupted: %w", serr)
		}
	}
	return zero, errors.New("retry: unreachable")
}

var retryableFragments = []string{
	"503",
	"500",
	"internal",
	"overloaded",
	"rate limit",
	"ratelimit",
	"quota",
	"resource exhausted",
	"resource_exhausted",
	"too many requests",
}

// Classify decides whether err is worth another attempt. Typed Google API errors are
// judged by status code; anything else by case-insensitive substrings.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Permanent
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return Retryable
		}
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return Retryable
		}
	}
	return Permanent
}

// IsRetryable is shorthand for Classify(err) == Retryable.
func IsRetryable(err error) bool {
	return Classify(err) == Retryable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candle-aggregator/src/logger"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrUnknownSymbol is returned when a tick names a symbol that was never seeded.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrUnknownTimerange is returned for timerange names missing from the catalog.
	ErrUnknownTimerange = errors.New("unknown timerange")
	// ErrMalformedMessage marks a provider frame that could not be turned into a tick.
	ErrMalformedMessage = errors.New("malformed provider message")
	// ErrSinkBackpressure is returned by a sink whose send queue is full.
	ErrSinkBackpressure = errors.New("sink send queue full")
	// ErrSinkClosed is returned by a sink that is no longer accepting messages.
	ErrSinkClosed = errors.New("sink closed")
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type AggregatorError struct {
	Message string
	Cause   error
}

func (e *AggregatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AggregatorError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ AggregatorError }
type ProviderError struct{ AggregatorError }
type DatabaseError struct{ AggregatorError }
type ValidationError struct{ AggregatorError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{AggregatorError{Message: msg, Cause: cause}}
}

func NewProviderError(msg string, cause error) error {
	return &ProviderError{AggregatorError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{AggregatorError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string, cause error) error {
	return &ValidationError{AggregatorError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling baseDelay between
// attempts. It returns early with the context error when ctx is cancelled.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}
		if !SleepWithContext(ctx, delay) {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries, lastErr)
}

// -----------------------------------------------------------------------------

// SleepWithContext waits for d or until ctx is done. It reports whether the
// full duration elapsed.
func SleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// -----------------------------------------------------------------------------

// NextDelay doubles d, capped at max.
func NextDelay(d, max time.Duration) time.Duration {
	next := d * 2
	if next > max {
		return max
	}
	return next
}

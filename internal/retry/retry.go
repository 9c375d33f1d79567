package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Class partitions errors by how a retry loop should treat them.
type Class int

const (
	// ClassPermanent errors will not succeed on retry.
	ClassPermanent Class = iota
	// ClassTemporary errors may succeed on retry (5xx, transient server state).
	ClassTemporary
	// ClassNetwork errors are connectivity failures (timeouts, resets).
	ClassNetwork
	// ClassRateLimit errors need an extra cool-down before the next attempt.
	ClassRateLimit
)

// rateLimitCooldown is added on top of the backoff delay after a rate limit.
const rateLimitCooldown = 5 * time.Second

// Error carries a retry class alongside the underlying error.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable.
func Permanent(err error) error { return &Error{Class: ClassPermanent, Err: err} }

// Temporary wraps err as retryable.
func Temporary(err error) error { return &Error{Class: ClassTemporary, Err: err} }

// Network wraps err as a retryable connectivity failure.
func Network(err error) error { return &Error{Class: ClassNetwork, Err: err} }

// RateLimit wraps err as retryable with an extra cool-down.
func RateLimit(err error) error { return &Error{Class: ClassRateLimit, Err: err} }

// Classify returns the retry class of err. Unwrapped errors default to
// temporary, except recognizable net errors which classify as network.
func Classify(err error) Class {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ClassNetwork
	}
	return ClassTemporary
}

// FromHTTPStatus classifies an HTTP response code: 408 and 429 are rate
// limits, other 4xx are permanent, everything else retryable.
func FromHTTPStatus(status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return RateLimit(err)
	case status >= 400 && status < 500:
		return Permanent(err)
	default:
		return Temporary(err)
	}
}

// Config controls the exponential backoff schedule.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig matches the gateway's network call policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Do runs fn up to cfg.MaxAttempts times with exponential backoff, stopping
// early on a permanent error or context cancellation. Rate-limit errors add a
// fixed cool-down on top of the backoff delay.
func Do(ctx context.Context, cfg Config, log *zap.Logger, op string, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		class := Classify(lastErr)
		if class == ClassPermanent {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if class == ClassRateLimit {
			wait += rateLimitCooldown
		}
		if log != nil {
			log.Warn("retrying operation",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ErrorClass buckets an error for the sink upload retry loop.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassTransient
	ClassThrottled
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassThrottled:
		return "throttled"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// RetryPolicy controls RetryUpload. The translation service itself is never
// retried here; a failed image is left pending for the user instead.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	OnRetry      func(attempt int, err error, class ErrorClass)
}

// DefaultRetryPolicy is used by the cloud archive sinks.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     4,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     8 * time.Second,
	}
}

var transientMarkers = []string{
	"tls handshake timeout",
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"unexpected eof",
}

var throttleMarkers = []string{
	"slowdown",
	"throttl",
	"serverbusy",
	"server busy",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"serviceunavailable",
	"internalerror",
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying whatever its message says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Classify maps an upload error onto an ErrorClass by inspecting its text.
// Cloud SDK errors share no common type, so matching on the message is the
// lowest common denominator.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassPermanent
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return ClassPermanent
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return ClassTransient
		}
	}
	for _, m := range throttleMarkers {
		if strings.Contains(msg, m) {
			return ClassThrottled
		}
	}
	return ClassPermanent
}

// Backoff returns a full-jitter delay: random(0, min(max, initial*2^attempt)).
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 || initial <= 0 {
		return 0
	}
	base := initial << uint(attempt)
	if base <= 0 || base > max {
		base = max
	}
	return time.Duration(rand.Int63n(int64(base) + 1))
}

// RetryUpload runs op until it succeeds, fails permanently, exhausts the
// policy, or ctx ends. Waits between attempts respect ctx.
func RetryUpload(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		class := Classify(err)
		if class == ClassPermanent || attempt == attempts-1 {
			break
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, class)
		}

		delay := Backoff(attempt+1, policy.InitialDelay, policy.MaxDelay)
		if class == ClassThrottled && delay < policy.InitialDelay {
			delay = policy.InitialDelay
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if Classify(lastErr) == ClassPermanent {
		return lastErr
	}
	return fmt.Errorf("upload failed after %d attempts: %w", attempts, lastErr)
}

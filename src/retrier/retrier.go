// Package retrier wraps every mutating control-plane call with bounded
// fixed-delay retry. The provider is eventually consistent and throttles,
// so a handful of evenly spaced attempts is usually enough; callers decide
// whether exhaustion is fatal.
package retrier

import (
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"redshift-dr/src/awsapi"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

// Executor retries an operation up to Attempts times, sleeping Delay
// between attempts on the supplied clock. Notify, when set, is called once
// per failed attempt.
type Executor struct {
	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
	Notify   func(label string, attempt int, err error)
}

// ExhaustedError reports that all attempts for an operation failed.
type ExhaustedError struct {
	Label    string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Label, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Run executes op, retrying transient failures. NotFound and Conflict
// results are idempotency signals, not failures worth repeating, so they
// surface immediately for the caller to interpret.
func (e Executor) Run(label string, op func() error) error {
	attempts := e.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := e.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	clk := e.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	err := retry.Call(retry.CallArgs{
		Func:     op,
		Attempts: attempts,
		Delay:    delay,
		Clock:    clk,
		IsFatalError: func(err error) bool {
			return awsapi.IsNotFound(err) || awsapi.IsConflict(err)
		},
		NotifyFunc: func(lastError error, attempt int) {
			if e.Notify != nil {
				e.Notify(label, attempt, lastError)
			}
		},
	})
	if retry.IsAttemptsExceeded(err) {
		return &ExhaustedError{Label: label, Attempts: attempts, Last: retry.LastError(err)}
	}
	return err
}

// IsExhausted reports whether err is (or wraps) an ExhaustedError.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

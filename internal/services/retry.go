package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Delay is a jitter window; each wait is drawn uniformly from [Min, Max].
type Delay struct {
	Min time.Duration
	Max time.Duration
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeFatal
)

// Retrier runs an operation up to Attempts times, sleeping a jittered delay before
// the first attempt and a jittered backoff before each retry.
type Retrier struct {
	Attempts   int
	FirstDelay Delay
	RetryDelay Delay
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand returns a float in [0, 1). Tests replace it.
	Rand   func() float64
	Logger *slog.Logger
}

// NewRetrier returns a Retrier that sleeps for real.
func NewRetrier(attempts int, first, retry Delay, logger *slog.Logger) *Retrier {
	return &Retrier{
		Attempts:   attempts,
		FirstDelay: first,
		RetryDelay: retry,
		Sleep:      SleepContext,
		Rand:       rand.Float64,
		Logger:     logger,
	}
}

// SleepContext waits for d or until ctx is cancelled.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter draws a duration from the window using r.
func (d Delay) Jitter(r func() float64) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(r()*float64(d.Max-d.Min))
}

// Do runs op until it succeeds, fails fatally or the attempts are used up.
// The last error is returned on exhaustion.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		wait := r.FirstDelay.Jitter(r.Rand)
		if attempt > 1 {
			wait = r.RetryDelay.Jitter(r.Rand)
		}
		if err := r.Sleep(ctx, wait); err != nil {
			return err
		}

		lastErr = op(ctx)
		switch classify(lastErr) {
		case outcomeSuccess:
			return nil
		case outcomeFatal:
			return lastErr
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		logCtx := r.Logger.With("attempt", attempt, "maxAttempts", attempts, "error", lastErr)
		var fe *FetchError
		if errors.As(lastErr, &fe) && fe.Status == http.StatusForbidden {
			logCtx = logCtx.With("hint", "the site is blocking automated requests; try another network or source")
		}
		if attempt < attempts {
			logCtx.Warn("Request failed, will retry.")
		} else {
			logCtx.Error("Request failed, giving up.")
		}
	}
	return lastErr
}

func classify(err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var fe *FetchError
		// A client timeout is a network failure; a cancelled run is not.
		if errors.As(err, &fe) && errors.Is(err, context.DeadlineExceeded) {
			return outcomeRetry
		}
		return outcomeFatal
	}

	// A body that fails mid-read arrives with a 2xx status; only error statuses decide here.
	var fe *FetchError
	if errors.As(err, &fe) && (fe.Status < 200 || fe.Status > 299) && fe.Status != 0 {
		switch fe.Status {
		case http.StatusForbidden,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return outcomeRetry
		}
		return outcomeFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return outcomeRetry
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return outcomeRetry
	}
	return outcomeFatal
}

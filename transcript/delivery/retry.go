package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Retry re-runs a call after rate-limit (429) and server (5xx) failures. Any other error is
// returned at once. The zero value uses three attempts with the default waits.
type Retry struct {
	Attempts         int
	RateLimitWaits   []time.Duration
	ServerErrorWaits []time.Duration
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

var (
	defaultRateLimitWaits   = []time.Duration{5 * time.Second, 30 * time.Second, 65 * time.Second}
	defaultServerErrorWaits = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
)

// Do calls fn until it succeeds, fails permanently or attempts run out.
func (r Retry) Do(ctx context.Context, fn func() error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		wait, retryable := r.waitFor(err, attempt)
		if !retryable {
			return err
		}
		if serr := sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%w (retry aborted: %v)", err, serr)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func (r Retry) waitFor(err error, attempt int) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		if apiErr.RetryAfter > 0 {
			return time.Duration(apiErr.RetryAfter) * time.Second, true
		}
		return pick(r.RateLimitWaits, defaultRateLimitWaits, attempt), true
	case apiErr.StatusCode >= 500:
		return pick(r.ServerErrorWaits, defaultServerErrorWaits, attempt), true
	default:
		return 0, false
	}
}

func pick(waits, defaults []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		waits = defaults
	}
	if attempt >= len(waits) {
		return waits[len(waits)-1]
	}
	return waits[attempt]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

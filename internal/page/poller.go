package page

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is used when a Poller has no interval configured.
const DefaultPollInterval = 100 * time.Millisecond

// Poller retries a condition until it holds or the timeout elapses.
//
// The condition is always evaluated at least once, so a zero Timeout means
// "check once, do not wait".
type Poller struct {
	// Interval is the pause between attempts.
	Interval time.Duration

	// Timeout bounds the total wait.
	Timeout time.Duration
}

// Until evaluates cond until it reports done. It returns the first non-nil
// error from cond, the context error on cancellation, or a *TimeoutError
// describing what once the timeout has elapsed.
func (p Poller) Until(ctx context.Context, what string, cond func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(p.Timeout)
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !time.Now().Before(deadline) {
			return &TimeoutError{What: what, After: p.Timeout}
		}

		if err := Sleep(ctx, min(interval, time.Until(deadline))); err != nil {
			return err
		}
	}
}

// Find polls until the selector path resolves from root and returns the
// element it points at. Expiry yields a *TimeoutError whose Last field
// holds the lookup error of the final attempt.
func (p Poller) Find(ctx context.Context, root Element, path Path) (Element, error) {
	var (
		found Element
		last  error
	)
	err := p.Until(ctx, path.String(), func(ctx context.Context) (bool, error) {
		found, last = Resolve(ctx, root, path)
		if last == nil {
			return true, nil
		}
		if isAbsent(last) {
			return false, nil
		}
		return false, last
	})
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			te.Last = last
		}
		return nil, err
	}
	return found, nil
}

// Lookup is Find for optional elements: expiry is reported as (nil, nil).
// Context cancellation and driver failures are still returned.
func (p Poller) Lookup(ctx context.Context, root Element, path Path) (Element, error) {
	el, err := p.Find(ctx, root, path)
	if errors.Is(err, ErrTimeout) {
		return nil, nil
	}
	return el, err
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

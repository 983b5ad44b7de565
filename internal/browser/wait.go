package browser

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/inventory-smoke/internal/errs"
)

// DefaultPollInterval paces WaitUntil when no interval is given.
const DefaultPollInterval = 100 * time.Millisecond

// ErrWaitTimeout is returned by WaitUntil when the condition never held.
var ErrWaitTimeout = errs.New(errs.Timeout, "browser: condition not met before timeout")

// Condition reports whether the awaited page state has been reached.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond until it returns true, returns an error, or timeout
// elapses. The first poll happens immediately.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrWaitTimeout
		}
		ok, err := cond(waitCtx)
		if err != nil {
			if ctx.Err() == nil && waitCtx.Err() != nil {
				return ErrWaitTimeout
			}
			return err
		}
		if ok {
			return nil
		}
	}
}

// URLChanged is satisfied once the session has left from.
func URLChanged(s Session, from string) Condition {
	return func(context.Context) (bool, error) {
		return s.URL() != from, nil
	}
}

// URLIs is satisfied once the session is at want.
func URLIs(s Session, want string) Condition {
	return func(context.Context) (bool, error) {
		return s.URL() == want, nil
	}
}

// AnyPresent is satisfied once any selector matches at least one element.
func AnyPresent(s Session, sels ...Selector) Condition {
	return func(ctx context.Context) (bool, error) {
		for _, sel := range sels {
			found, err := s.FindAll(ctx, sel)
			if err != nil {
				return false, err
			}
			if len(found) > 0 {
				return true, nil
			}
		}
		return false, nil
	}
}

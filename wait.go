package main

import (
	"context"
	"time"
)

// WaitFor polls cond every interval until it holds, timeout elapses or ctx
// is done. A zero timeout waits on ctx alone.
func WaitFor(ctx context.Context, interval, timeout time.Duration, cond func() bool) error {
	if interval <= 0 {
		interval = time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		if cond() {
			return nil
		}
		if err := sleepCtx(ctx, interval); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return ErrTimeout
			}
			return err
		}
	}
}

// sleepCtx waits d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

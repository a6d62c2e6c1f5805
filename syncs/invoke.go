package syncs

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned by Invoke when fn did not finish in time.
var ErrDeadline = errors.New("deadline exceeded")

// Invoke runs fn on its own goroutine and waits at most timeout for it.
// The context given to fn is cancelled at the deadline. fn may keep running after
// Invoke returns if it does not observe cancellation; its side effects are then unknown
// and its result is dropped. A non-positive timeout calls fn directly.
// When ctx itself ends first, its error is returned instead of ErrDeadline.
func Invoke[T any](parent context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (ret T, err error) {
	if timeout <= 0 {
		return fn(parent)
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return ret, err
		}
		return ret, ErrDeadline
	}
}

package loop

import (
	"context"
	"fmt"
	"time"
)

type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}

	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// continue loop after sleeping interval (can be 0).
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// break loop. If breaking because of error, pass it; otherwise pass nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one iteration of a loop.
//
// It receives the value the previous iteration returned, and returns
// (new value, Continue(...) or Break(...)).
// Zero value Next{} equals Continue(0), that is, "go next ASAP!".
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task in loop until it breaks or ctx is done.
//
// # Args
//
// - ctx: context. When this context gets Done, loop breaks with ctx.Err().
//
// - init: task is called as task(ctx, init) at the first time.
//
// - task: task receiving (context, last value).
//
// # Returns
//
// - T: the value task returned at last.
// This value is always returned whether or not error is non-nil together.
//
// - error: error passed to Break(error), or ctx.Err() on cancellation.
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		v, n := task(ctx, value)

		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down is priority. it should come first, checking timer later.
			if !timer.Stop() {
				<-timer.C // drain. see: time.Timer.Stop's document
			}
			return value, ctx.Err()

		case <-timer.C:
		}
	}
}

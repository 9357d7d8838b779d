package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelyard/modelyard/pkg/worker"
)

func TestPool(t *testing.T) {
	t.Run("an enqueued unit runs and its handle carries the result", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.New(ctx, 2, 8)
		defer pool.Shutdown()

		h, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
			return 42, nil
		})
		if err != nil {
			t.Fatal(err)
		}

		got, err := h.Result(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != 42 {
			t.Errorf("result: got %v, want 42", got)
		}
	})

	t.Run("a chain passes each unit's value to the next", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.New(ctx, 1, 8)
		defer pool.Shutdown()

		h, err := pool.Chain(
			func(ctx context.Context, _ any) (any, error) { return 1, nil },
			func(ctx context.Context, in any) (any, error) { return in.(int) + 10, nil },
			func(ctx context.Context, in any) (any, error) { return in.(int) * 2, nil },
		)
		if err != nil {
			t.Fatal(err)
		}

		got, err := h.Result(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != 22 {
			t.Errorf("chained result: got %v, want 22", got)
		}
	})

	t.Run("a chain stops at the first error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.New(ctx, 1, 8)
		defer pool.Shutdown()

		expectedErr := errors.New("boom")
		ran := false
		h, err := pool.Chain(
			func(ctx context.Context, _ any) (any, error) { return nil, expectedErr },
			func(ctx context.Context, _ any) (any, error) { ran = true; return nil, nil },
		)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := h.Result(ctx); !errors.Is(err, expectedErr) {
			t.Errorf("got %v, want %v", err, expectedErr)
		}
		if ran {
			t.Error("unit after the failing one ran")
		}
	})

	t.Run("enqueue after shutdown is refused", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.New(ctx, 1, 8)
		pool.Shutdown()

		if _, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
			return nil, nil
		}); !errors.Is(err, worker.ErrClosed) {
			t.Errorf("got %v, want ErrClosed", err)
		}
	})

	t.Run("a producer blocked on a full queue does not block shutdown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.New(ctx, 1, 1)

		// occupy the single worker...
		started := make(chan struct{})
		release := make(chan struct{})
		busy, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		<-started

		// ...fill the queue...
		queued, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
			return "queued", nil
		})
		if err != nil {
			t.Fatal(err)
		}

		// ...and block a third producer on the send.
		blockedResult := make(chan error, 1)
		go func() {
			h, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
				return "blocked", nil
			})
			if err != nil {
				blockedResult <- err
				return
			}
			_, err = h.Result(ctx)
			blockedResult <- err
		}()
		time.Sleep(50 * time.Millisecond)

		shutdownDone := make(chan struct{})
		go func() {
			pool.Shutdown()
			close(shutdownDone)
		}()
		time.Sleep(50 * time.Millisecond)

		// shutdown already refuses new units even though a producer is
		// still blocked on the full queue.
		if _, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
			return nil, nil
		}); !errors.Is(err, worker.ErrClosed) {
			t.Errorf("got %v, want ErrClosed", err)
		}

		// everything admitted before shutdown drains.
		close(release)
		if err := worker.Wait(busy, time.Second); err != nil {
			t.Fatal(err)
		}
		if err := worker.Wait(queued, time.Second); err != nil {
			t.Fatal(err)
		}
		select {
		case err := <-blockedResult:
			if err != nil {
				t.Errorf("blocked producer's unit failed: %s", err)
			}
		case <-time.After(time.Second):
			t.Fatal("blocked producer never completed")
		}
		select {
		case <-shutdownDone:
		case <-time.After(time.Second):
			t.Fatal("shutdown never returned")
		}
	})

	t.Run("units queued before shutdown still run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.New(ctx, 1, 8)

		h, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return "done", nil
		})
		if err != nil {
			t.Fatal(err)
		}
		pool.Shutdown()

		got, err := h.Result(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != "done" {
			t.Errorf("result: got %v, want done", got)
		}
	})
}

// Package worker provides a fixed-size goroutine pool behind a queue.
//
// Producers enqueue units of work and receive a Handle to await the outcome.
// Chain composes units sequentially, passing each unit's return value to the
// next one.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/modelyard/modelyard/pkg/loop"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// Unit is a single queued task. It receives the value produced by the
// previous unit in a chain (nil for a standalone unit).
type Unit func(ctx context.Context, in any) (any, error)

// Handle is the producer's view of an enqueued unit.
type Handle struct {
	done   chan struct{}
	result any
	err    error
}

// Done is closed when the unit (or chain) has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the unit has finished and returns its outcome.
func (h *Handle) Result(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

type job struct {
	unit   Unit
	in     any
	handle *Handle
}

// Pool dispatches queued units onto a fixed number of goroutines.
type Pool struct {
	queue chan job

	mu      sync.Mutex
	closed  bool
	sending sync.WaitGroup
}

var ErrClosed = xerrors.New("worker pool is closed")

// New starts size workers reading from a queue of the given capacity.
// Workers drain until Shutdown is called or ctx is cancelled.
func New(ctx context.Context, size int, capacity int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{queue: make(chan job, capacity)}

	for i := 0; i < size; i++ {
		go func() {
			loop.Start(ctx, struct{}{}, func(ctx context.Context, _ struct{}) (struct{}, loop.Next) {
				select {
				case <-ctx.Done():
					return struct{}{}, loop.Break(ctx.Err())
				case j, ok := <-p.queue:
					if !ok {
						return struct{}{}, loop.Break(nil)
					}
					j.handle.result, j.handle.err = j.unit(ctx, j.in)
					close(j.handle.done)
					return struct{}{}, loop.Continue(0)
				}
			})
		}()
	}
	return p
}

// Enqueue submits a unit for execution and returns its Handle.
func (p *Pool) Enqueue(unit Unit) (*Handle, error) {
	return p.enqueue(unit, nil)
}

func (p *Pool) enqueue(unit Unit, in any) (*Handle, error) {
	// the send happens outside the lock: a producer blocked on a full
	// queue must not stop other producers or Shutdown from proceeding.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.sending.Add(1)
	p.mu.Unlock()
	defer p.sending.Done()

	h := &Handle{done: make(chan struct{})}
	p.queue <- job{unit: unit, in: in, handle: h}
	return h, nil
}

// Chain enqueues units to run sequentially, each receiving the previous
// unit's return value. The whole chain occupies a single worker slot;
// it stops at the first error.
func (p *Pool) Chain(units ...Unit) (*Handle, error) {
	return p.Enqueue(func(ctx context.Context, in any) (any, error) {
		value := in
		for _, u := range units {
			v, err := u(ctx, value)
			if err != nil {
				return value, err
			}
			value = v
		}
		return value, nil
	})
}

// Shutdown stops accepting new units. Queued units, including those whose
// producers were admitted but still blocked on a full queue, still run.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	// admitted senders finish before the queue closes under them.
	p.sending.Wait()
	close(p.queue)
}

// Wait blocks until h completes or the timeout elapses.
func Wait(h *Handle, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.Done():
		return nil
	case <-timer.C:
		return xerrors.New("timed out waiting for worker")
	}
}

// Package dispatch runs keyed work on a fixed pool of goroutines.
//
// Items that share a key are always handled by the same worker, in the order
// they were dispatched. Items with different keys may run concurrently.
package dispatch

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const DefaultQueueDepth = 64

type Dispatcher[T any] struct {
	queues []chan T
	handle func(context.Context, T)

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func New[T any](workers, depth int, handle func(context.Context, T)) *Dispatcher[T] {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = DefaultQueueDepth
	}

	queues := make([]chan T, workers)
	for i := range queues {
		queues[i] = make(chan T, depth)
	}

	return &Dispatcher[T]{queues: queues, handle: handle}
}

// Start launches the workers. Handlers receive ctx; it should outlive Stop so
// queued items can still finish.
func (d *Dispatcher[T]) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for _, q := range d.queues {
		d.wg.Add(1)
		go func(q <-chan T) {
			defer d.wg.Done()
			for item := range q {
				d.handle(ctx, item)
			}
		}(q)
	}
}

// Dispatch queues item on the worker owning key. It blocks while that queue is
// full and reports false once the dispatcher is stopped.
func (d *Dispatcher[T]) Dispatch(key string, item T) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	d.queues[d.worker(key)] <- item
	return true
}

// Stop closes the queues and waits for the workers to drain them.
func (d *Dispatcher[T]) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher[T]) Workers() int {
	return len(d.queues)
}

func (d *Dispatcher[T]) worker(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(d.queues)))
}

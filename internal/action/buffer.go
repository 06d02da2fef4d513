package action

import (
	"context"
	"sync"
)

// Buffer is a thread-safe, unbounded FIFO of actions.
//
// Reactors that perform I/O implement HandleAction by enqueuing into a Buffer
// and drain it on their own goroutine, so Dispatch never waits on disk or
// network.
//
// The buffer uses a channel for signaling to enable context-aware waiting.
type Buffer struct {
	mu      sync.Mutex
	actions []Action
	closed  bool
	signal  chan struct{} // buffered, size 1
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		actions: make([]Action, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// HandleAction enqueues a. It lets a Buffer be registered directly on a
// Dispatcher.
func (b *Buffer) HandleAction(a Action) {
	b.Enqueue(a)
}

// Enqueue adds a to the back of the buffer.
// Returns false if the buffer is closed.
func (b *Buffer) Enqueue(a Action) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	b.actions = append(b.actions, a)

	// Non-blocking; the size-1 buffer coalesces signals.
	select {
	case b.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front action without blocking.
func (b *Buffer) TryDequeue() (Action, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.actions) == 0 {
		return nil, false
	}

	a := b.actions[0]
	b.actions[0] = nil // release for GC

	if len(b.actions) == 1 {
		b.actions = b.actions[:0]
	} else {
		b.actions = b.actions[1:]
	}

	return a, true
}

// Wait returns a channel that signals when actions may be available.
// The channel is closed when the buffer is closed.
func (b *Buffer) Wait() <-chan struct{} {
	return b.signal
}

// Len returns the number of buffered actions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.actions)
}

// Close stops accepting actions and wakes any waiter. Already buffered
// actions can still be dequeued.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.signal)
}

// Drain calls fn for every action in FIFO order until the buffer is closed
// and empty, or ctx is cancelled.
//
// Must be called from exactly one goroutine. Returns nil after a Close once
// every buffered action has been handled, or ctx.Err() on cancellation.
func (b *Buffer) Drain(ctx context.Context, fn func(context.Context, Action)) error {
	for {
		if a, ok := b.TryDequeue(); ok {
			fn(ctx, a)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-b.signal:
			if !open && b.Len() == 0 {
				return nil
			}
		}
	}
}

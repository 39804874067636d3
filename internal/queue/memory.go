package queue

import (
	"context"
	"sync"

	"github.com/pigeonhq/pigeon/internal/model"
)

// Memory is a bounded in-process queue backed by a buffered channel. It is
// the default backend; a broker-backed queue can replace it behind the
// Queue interface without touching the handlers.
type Memory struct {
	ch chan model.Notification

	mu     sync.Mutex
	closed bool
}

// NewMemory creates a Memory queue holding at most capacity notifications.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{ch: make(chan model.Notification, capacity)}
}

// Enqueue adds a notification without blocking.
func (q *Memory) Enqueue(ctx context.Context, n model.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until work arrives or the queue drains after Close.
func (q *Memory) Dequeue(ctx context.Context) (model.Notification, bool, error) {
	select {
	case n, ok := <-q.ch:
		return n, ok, nil
	case <-ctx.Done():
		return model.Notification{}, false, ctx.Err()
	}
}

// Len reports the number of queued notifications.
func (q *Memory) Len() int { return len(q.ch) }

// Close stops the queue; already-queued notifications stay dequeueable.
func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

// Package queue decouples request admission from delivery. Handlers enqueue
// accepted notifications and return immediately; a dispatcher drains the
// queue and hands each notification to the matching provider.
package queue

import (
	"context"
	"errors"

	"github.com/pigeonhq/pigeon/internal/model"
)

// ErrQueueFull is returned when the queue cannot accept more work.
var ErrQueueFull = errors.New("queue full")

// ErrClosed is returned when enqueueing to a closed queue.
var ErrClosed = errors.New("queue closed")

// Queue accepts notifications for asynchronous delivery.
type Queue interface {
	// Enqueue adds a notification. It must not block on a full queue;
	// it returns ErrQueueFull instead so the handler can report 503.
	Enqueue(ctx context.Context, n model.Notification) error
	// Dequeue blocks until a notification is available, the queue is
	// closed (ok=false), or the context is cancelled.
	Dequeue(ctx context.Context) (model.Notification, bool, error)
	// Len reports the number of notifications waiting.
	Len() int
	// Close stops the queue. Pending notifications remain dequeueable.
	Close() error
}

package queue

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/pigeonhq/pigeon/internal/errs"
	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/provider"
	"github.com/pigeonhq/pigeon/internal/retry"
)

// Dispatcher drains a Queue and routes each notification to the provider
// for its channel. Delivery is retried with backoff on transient failures;
// a notification that still fails is logged and dropped, never requeued.
type Dispatcher struct {
	queue  Queue
	sms    provider.SMSSender
	push   provider.PushSender
	policy retry.Policy
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given queue and providers.
func NewDispatcher(q Queue, sms provider.SMSSender, push provider.PushSender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  q,
		sms:    sms,
		push:   push,
		policy: retry.DefaultPolicy(),
		logger: logger,
	}
}

// Run consumes the queue until the context is cancelled or the queue
// closes and drains. It is intended to run in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		n, ok, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification) {
	err := retry.Do(ctx, d.policy, transientDelivery, func(ctx context.Context) error {
		switch n.Type {
		case model.NotificationSMS:
			return d.sms.SendSMS(ctx, n)
		case model.NotificationPush:
			return d.push.SendPush(ctx, n)
		default:
			return errs.NonRetryable("deliver", errors.New("unknown notification type "+string(n.Type)))
		}
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "notification delivery failed",
			"notification_id", n.ID,
			"notification_type", n.Type,
			"service_id", n.ServiceID,
			"error", err,
		)
	}
}

// transientDelivery reports whether a provider error is worth another
// attempt: explicit retryable classifications and network timeouts.
func transientDelivery(err error) bool {
	if errs.IsRetryable(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

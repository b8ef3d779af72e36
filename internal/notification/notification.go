// Package notification delivers customer-facing messages such as
// invoice emails. Delivery is fire-and-forget; a failed send never
// affects document state.
package notification

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/renewly/renewly/internal/logger"
)

// EventType identifies what is being communicated
type EventType string

const (
	EventInvoiceSent     EventType = "invoice.sent"
	EventInvoicePaid     EventType = "invoice.paid"
	EventSubscriptionDue EventType = "subscription.renewal_due"
)

// Event is a single message to deliver
type Event struct {
	Type       EventType      `json:"type"`
	CustomerID string         `json:"customer_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Notifier delivers a single event
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// Dispatcher sends events asynchronously with retries
type Dispatcher struct {
	notifier Notifier
	logger   *logger.Logger

	maxElapsed time.Duration
}

// NewDispatcher creates a dispatcher around the given notifier
func NewDispatcher(notifier Notifier, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:   notifier,
		logger:     logger,
		maxElapsed: 30 * time.Second,
	}
}

// DispatchAsync delivers the event in the background, retrying with
// exponential backoff. The caller's context is not reused so an HTTP
// request finishing does not cancel the delivery.
func (d *Dispatcher) DispatchAsync(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.maxElapsed)
		defer cancel()

		b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		err := backoff.Retry(func() error {
			return d.notifier.Notify(ctx, event)
		}, b)
		if err != nil {
			d.logger.Errorw("dropping notification after retries",
				"event_type", event.Type,
				"customer_id", event.CustomerID,
				"error", err,
			)
			return
		}
		d.logger.Debugw("notification delivered",
			"event_type", event.Type,
			"customer_id", event.CustomerID,
		)
	}()
}

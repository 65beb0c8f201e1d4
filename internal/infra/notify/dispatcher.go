// Package notify delivers operator alerts. Dispatch is asynchronous so a
// slow or down messenger can never stall payment processing.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain/ports/adapter"
)

var _ adapter.AlertSink = (*Dispatcher)(nil)

// Dispatcher buffers alerts and forwards them to the underlying sink from a
// single worker goroutine. When the buffer is full the alert is dropped and
// logged; callers are never blocked.
type Dispatcher struct {
	sink adapter.AlertSink
	ch   chan adapter.Alert
	log  *zerolog.Logger
}

func NewDispatcher(sink adapter.AlertSink, buffer int, logger *zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{sink: sink, ch: make(chan adapter.Alert, buffer), log: logger}
}

// Send enqueues without blocking.
func (d *Dispatcher) Send(_ context.Context, a adapter.Alert) error {
	select {
	case d.ch <- a:
	default:
		d.log.Warn().
			Str("kind", string(a.Kind)).
			Str("order_id", a.OrderID).
			Msg("alert buffer full, dropping alert")
	}
	return nil
}

// Start drains the buffer until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.ch:
			if err := d.sink.Send(ctx, a); err != nil {
				d.log.Error().Err(err).
					Str("kind", string(a.Kind)).
					Str("order_id", a.OrderID).
					Msg("alert delivery failed")
			}
		}
	}
}

// Package notifier delivers cancellation and waitlist-claim messages to
// clients via the message broker. Delivery is strictly fire-and-forget:
// the cancellation engine never blocks on, and never fails because of, a
// notification. The Dispatcher enforces that contract in front of any
// concrete Notifier.
package notifier

import (
	"context"
	"log"

	"github.com/renholm/studio-class-booking/internal/queue"
)

// Notifier delivers the two message kinds the engine produces. Errors
// are for observability only; callers must not let them affect the
// operation that triggered the notification.
type Notifier interface {
	NotifyCancellation(ctx context.Context, notice queue.CancellationNotice) error
	NotifyWaitlistClaim(ctx context.Context, notice queue.WaitlistClaimNotice) error
}

// Dispatcher wraps a Notifier with a bounded queue drained by a single
// worker goroutine. Enqueueing never blocks: when the buffer is full the
// notice is dropped and logged, which is acceptable because notification
// outcome carries no correctness weight.
type Dispatcher struct {
	inner Notifier
	tasks chan func()
	done  chan struct{}
}

// NewDispatcher starts a Dispatcher with the given buffer size.
func NewDispatcher(inner Notifier, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		inner: inner,
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for task := range d.tasks {
		task()
	}
}

// Close stops accepting notices and waits for the queued ones to drain.
func (d *Dispatcher) Close() {
	close(d.tasks)
	<-d.done
}

func (d *Dispatcher) enqueue(kind string, task func()) error {
	select {
	case d.tasks <- task:
	default:
		log.Printf("notifier: dispatch buffer full, dropping %s notice", kind)
	}
	return nil
}

// NotifyCancellation queues a cancellation notice for delivery.
func (d *Dispatcher) NotifyCancellation(_ context.Context, notice queue.CancellationNotice) error {
	return d.enqueue("cancellation", func() {
		// Detached from the request context: the triggering operation has
		// already committed by the time this runs.
		if err := d.inner.NotifyCancellation(context.Background(), notice); err != nil {
			log.Printf("notifier: cancellation notice for client %d: %v", notice.ClientID, err)
		}
	})
}

// NotifyWaitlistClaim queues a claim offer notice for delivery.
func (d *Dispatcher) NotifyWaitlistClaim(_ context.Context, notice queue.WaitlistClaimNotice) error {
	return d.enqueue("waitlist-claim", func() {
		if err := d.inner.NotifyWaitlistClaim(context.Background(), notice); err != nil {
			log.Printf("notifier: claim notice for client %d: %v", notice.ClientID, err)
		}
	})
}

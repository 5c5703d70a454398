package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/renholm/studio-class-booking/internal/queue"
)

// Queue names consumed by the notification worker.
const (
	CancellationQueue  = "cancellation.notices"
	WaitlistClaimQueue = "waitlist.claims"
)

// AMQPNotifier publishes notices as persistent JSON messages to RabbitMQ.
// Each publish opens its own connection so a broker restart never leaves
// the notifier holding a dead channel; the cost is acceptable at
// cancellation volumes. Errors are logged and returned so callers can
// ignore failures without interrupting the main flow.
type AMQPNotifier struct {
	url string
}

// NewAMQPNotifier returns a notifier publishing to the broker at url.
func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{url: url}
}

// NotifyCancellation publishes a cancellation notice.
func (n *AMQPNotifier) NotifyCancellation(ctx context.Context, notice queue.CancellationNotice) error {
	return n.publish(ctx, CancellationQueue, notice)
}

// NotifyWaitlistClaim publishes a claim offer notice.
func (n *AMQPNotifier) NotifyWaitlistClaim(ctx context.Context, notice queue.WaitlistClaimNotice) error {
	return n.publish(ctx, WaitlistClaimQueue, notice)
}

func (n *AMQPNotifier) publish(ctx context.Context, queueName string, payload any) error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		log.Printf("notifier: dial broker: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notifier: open channel: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so notices survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("notifier: declare %s: %v", queueName, err)
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notifier: marshal notice: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("notifier: publish to %s: %v", queueName, err)
		return err
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends domain events to RabbitMQ.  Each publish dials its own
// connection; failures are logged and returned so callers can ignore them
// without interrupting the request.
type Publisher struct {
	url string
	log logrus.FieldLogger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{url: url, log: log.WithField("component", "publisher")}
}

// PublishBookingPaid publishes ev to the booking.paid queue as a
// persistent JSON message.
func (p *Publisher) PublishBookingPaid(ctx context.Context, ev BookingPaidEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).Error("marshal event failed")
		return err
	}
	return p.publish(ctx, BookingPaidQueue, body)
}

func (p *Publisher) publish(ctx context.Context, queueName string, body []byte) error {
	log := p.log.WithField("queue", queueName)
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Warn("dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.WithError(err).Warn("publish failed")
		return err
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer listens on the booking.paid queue and appends one audit line
// per paid booking to a log file.
type Consumer struct {
	url     string
	logPath string
	log     logrus.FieldLogger
}

// NewConsumer returns a consumer writing to logPath (e.g. logs/booking.log).
func NewConsumer(url, logPath string, log logrus.FieldLogger) *Consumer {
	return &Consumer{url: url, logPath: logPath, log: log.WithField("component", "booking-consumer")}
}

// Run connects, declares the queue and consumes until ctx is cancelled.
// Broker failures trigger a reconnect with exponential backoff; malformed
// messages are rejected without requeue so they cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if _, err := ch.QueueDeclare(BookingPaidQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingPaidQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(d.Body); err != nil {
				c.log.WithError(err).Error("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends its audit line.
func (c *Consumer) HandleMessage(body []byte) error {
	var ev BookingPaidEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return errors.New("event without booking_id")
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(AuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	c.log.WithFields(logrus.Fields{"booking_id": ev.BookingID, "transaction_id": ev.TransactionID}).Debug("audit line written")
	return nil
}

// AuditLine renders the single-line audit record of a paid booking.
func AuditLine(ev BookingPaidEvent) string {
	return fmt.Sprintf("[%s] Booking paid | booking_id=%d | transaction_id=%d | user_id=%d | vendor_id=%d | ticket_id=%d | ticket=%q | route=%q | transport=%s | departure=%q | qty=%d | amount=%s %s | ref=%s\n",
		ev.PaidAt, ev.BookingID, ev.TransactionID, ev.UserID, ev.VendorID, ev.TicketID,
		ev.Title, ev.Route, ev.Transport, ev.Departure, ev.Quantity, ev.Amount, ev.Currency, ev.ProcessorRef)
}

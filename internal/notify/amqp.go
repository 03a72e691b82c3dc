package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Publisher is the subset of *amqp.Channel used to publish events.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes events to a RabbitMQ topic exchange.
type AMQPNotifier struct {
	pub      Publisher
	exchange string
	log      *slog.Logger
	wg       sync.WaitGroup
}

// NewAMQPNotifier creates a notifier publishing to exchange through pub.
func NewAMQPNotifier(pub Publisher, exchange string, log *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, exchange: exchange, log: log}
}

// Dial connects to RabbitMQ, declares the topic exchange and returns the
// connection and channel. The caller owns closing both.
func Dial(ctx context.Context, url, exchange string, log *slog.Logger) (*amqp.Connection, *amqp.Channel, error) {
	const maxAttempts = 5
	delay := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, ch, err := connect(url, exchange)
		if err == nil {
			log.Info("rabbitmq connected", slog.Int("attempt", attempt), slog.String("exchange", exchange))
			return conn, ch, nil
		}
		lastErr = err
		log.Warn("rabbitmq connection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return nil, nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxAttempts, lastErr)
}

func connect(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return conn, ch, nil
}

// RideAssigned implements Notifier.
func (n *AMQPNotifier) RideAssigned(ctx context.Context, e Event) {
	n.publish(ctx, "ride.assigned", e)
}

// StatusChanged implements Notifier.
func (n *AMQPNotifier) StatusChanged(ctx context.Context, e Event) {
	n.publish(ctx, "ride.status."+string(e.Status), e)
}

// Wait blocks until every in-flight publish has finished.
func (n *AMQPNotifier) Wait() {
	n.wg.Wait()
}

func (n *AMQPNotifier) publish(ctx context.Context, routingKey string, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		n.log.Error("marshal notification", slog.String("ride_id", e.RideID), slog.Any("error", err))
		return
	}

	// Detach from the caller: the request may finish before delivery does.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()

		err := n.pub.PublishWithContext(pubCtx, n.exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.Timestamp,
			Body:         body,
		})
		if err != nil {
			n.log.Warn("publish notification failed",
				slog.String("ride_id", e.RideID),
				slog.String("routing_key", routingKey),
				slog.Any("error", err),
			)
		}
	}()
}

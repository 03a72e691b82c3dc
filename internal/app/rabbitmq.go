package app

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"ridematch/internal/config"
	"ridematch/internal/notify"
)

// Notifier bundles the lifecycle notifier with the broker resources it
// holds open.
type Notifier struct {
	notify.Notifier
	amqp *notify.AMQPNotifier
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewNotifier always logs events and, when RabbitMQ is enabled, also
// publishes them to the configured exchange. A broker that cannot be reached
// degrades to log-only delivery.
func NewNotifier(ctx context.Context, cfg config.RabbitMQConfig, log *slog.Logger) *Notifier {
	n := &Notifier{Notifier: notify.NewLogNotifier(log)}
	if !cfg.Enabled {
		return n
	}

	conn, ch, err := notify.Dial(ctx, cfg.URL, cfg.Exchange, log)
	if err != nil {
		log.Error("rabbitmq unavailable, notifications are log-only", slog.Any("error", err))
		return n
	}

	n.amqp = notify.NewAMQPNotifier(ch, cfg.Exchange, log)
	n.conn = conn
	n.ch = ch
	n.Notifier = notify.Multi{notify.NewLogNotifier(log), n.amqp}
	return n
}

// Close waits for in-flight publishes and closes the broker connection.
func (n *Notifier) Close() {
	if n.amqp == nil {
		return
	}
	n.amqp.Wait()
	_ = n.ch.Close()
	_ = n.conn.Close()
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ridematch/internal/domain"
	"ridematch/internal/logger"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{exchange: exchange, key: key, msg: msg})
	return f.err
}

func TestAMQPNotifier_RoutingKeys(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifier(pub, "ride_events", logger.Discard())

	now := time.Now()
	n.RideAssigned(context.Background(), Event{Type: EventRideAssigned, RideID: "ride-1", DriverID: "driver-1", Status: domain.RideStatusAccepted, Timestamp: now})
	n.StatusChanged(context.Background(), Event{Type: EventStatusChanged, RideID: "ride-1", Status: domain.RideStatusCompleted, Timestamp: now})
	n.Wait()

	if len(pub.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.msgs))
	}

	keys := map[string]bool{}
	for _, m := range pub.msgs {
		if m.exchange != "ride_events" {
			t.Errorf("unexpected exchange %q", m.exchange)
		}
		keys[m.key] = true
	}
	if !keys["ride.assigned"] || !keys["ride.status.completed"] {
		t.Errorf("unexpected routing keys: %v", keys)
	}
}

func TestAMQPNotifier_PayloadCarriesRideAndDriver(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifier(pub, "ride_events", logger.Discard())

	n.RideAssigned(context.Background(), Event{Type: EventRideAssigned, RideID: "ride-9", DriverID: "driver-3", Status: domain.RideStatusAccepted, Timestamp: time.Now()})
	n.Wait()

	var got Event
	if err := json.Unmarshal(pub.msgs[0].msg.Body, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if got.RideID != "ride-9" || got.DriverID != "driver-3" || got.Status != domain.RideStatusAccepted {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestAMQPNotifier_FailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	n := NewAMQPNotifier(pub, "ride_events", logger.Discard())

	// Must not panic or block even though every publish fails.
	n.StatusChanged(context.Background(), Event{RideID: "ride-1", Status: domain.RideStatusCancelled})
	n.Wait()
}

func TestAMQPNotifier_OutlivesCancelledCaller(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifier(pub, "ride_events", logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.StatusChanged(ctx, Event{RideID: "ride-1", Status: domain.RideStatusInProgress})
	n.Wait()

	if len(pub.msgs) != 1 {
		t.Fatalf("expected publish despite cancelled caller context, got %d", len(pub.msgs))
	}
}

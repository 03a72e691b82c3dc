package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// RideAssigned implements Notifier.
func (n *LogNotifier) RideAssigned(ctx context.Context, e Event) {
	n.send(ctx, e)
}

// StatusChanged implements Notifier.
func (n *LogNotifier) StatusChanged(ctx context.Context, e Event) {
	n.send(ctx, e)
}

func (n *LogNotifier) send(ctx context.Context, e Event) {
	n.log.InfoContext(ctx, "notification",
		slog.String("event", string(e.Type)),
		slog.String("ride_id", e.RideID),
		slog.String("rider_id", e.RiderID),
		slog.String("driver_id", e.DriverID),
		slog.String("status", string(e.Status)),
		slog.Time("timestamp", e.Timestamp),
	)
}

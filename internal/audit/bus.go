package audit

import (
	"context"
	"log/slog"

	"github.com/pulsemetrics/analytics-gateway/internal/core/events"
)

// EventTypeRecorded is published once per terminal gateway request state.
const EventTypeRecorded = "gateway.access.recorded"

// BusSink publishes records through the event bus. Delivery is asynchronous
// and failures never reach the caller, matching the best-effort audit
// contract.
type BusSink struct {
	bus *events.EventBus
}

func NewBusSink(bus *events.EventBus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Append(ctx context.Context, record Record) error {
	// Persistence must outlive the request: the handler returns (and the
	// request context dies) before the subscriber runs, and a cancelled
	// caller still gets its outcome recorded.
	s.bus.Publish(context.WithoutCancel(ctx), events.BaseEvent{
		ID:        record.ID,
		Type:      EventTypeRecorded,
		Timestamp: record.Timestamp,
		Data:      record,
	})
	return nil
}

// Subscriber persists published records through a backing sink.
type Subscriber struct {
	store  Sink
	logger *slog.Logger
}

func NewSubscriber(store Sink, logger *slog.Logger) *Subscriber {
	return &Subscriber{store: store, logger: logger}
}

// Register attaches the subscriber to the bus.
func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(EventTypeRecorded, s.Handle)
}

func (s *Subscriber) Handle(ctx context.Context, event events.Event) error {
	record, ok := event.Payload().(Record)
	if !ok {
		s.logger.Error("unexpected audit event payload", "event_id", event.EventID())
		return nil
	}
	if err := s.store.Append(ctx, record); err != nil {
		// Losing one audit entry is preferable to failing the read path.
		s.logger.Error("failed to persist audit record",
			"error", err,
			"record_id", record.ID,
			"user_id", record.UserID)
	}
	return nil
}

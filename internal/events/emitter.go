package events

import (
	"context"

	"go.uber.org/zap"
)

// EventCounter is satisfied by the metrics sink.
type EventCounter interface {
	RecordEvent(eventType string)
}

// Emitter delivers events best-effort. Delivery failures are logged and never
// propagated: notifications are not part of a mutation's outcome.
type Emitter struct {
	Publisher Publisher
	Logger    *zap.Logger
	Counter   EventCounter
}

// Emit publishes event.
func (e Emitter) Emit(ctx context.Context, event Event) {
	if e.Publisher == nil {
		return
	}
	if err := e.Publisher.Publish(ctx, event); err != nil && e.Logger != nil {
		e.Logger.Warn("event delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
	if e.Counter != nil {
		e.Counter.RecordEvent(string(event.Type))
	}
}

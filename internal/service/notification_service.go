package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/events"
)

// NotificationService turns engine events into operator-facing log lines.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || !n.cfg.LogEvents {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventAutoCloseWarning, n.handleAutoClose)
	n.dispatcher.Subscribe(events.EventAutoCloseExecuted, n.handleAutoClose)
	n.dispatcher.Subscribe(events.EventDuplicateFound, n.handleDuplicateFound)
}

func (n *NotificationService) handleLifecycle(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func (n *NotificationService) handleSLABreached(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.SLABreachedPayload); ok {
		fields = append(fields,
			zap.String("priority_key", string(p.PriorityKey)),
			zap.Strings("escalation_targets", p.EscalationTargets),
			zap.Time("deadline", p.Deadline))
	}
	n.logger.Warn(string(event.Type), fields...)
	return nil
}

func (n *NotificationService) handleAutoClose(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.AutoClosePayload); ok {
		fields = append(fields, zap.Duration("inactive", p.Inactive), zap.Time("close_at", p.CloseAt))
	}
	n.logger.Info(string(event.Type), fields...)
	return nil
}

func (n *NotificationService) handleDuplicateFound(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.DuplicateFoundPayload); ok {
		fields = append(fields, zap.Strings("candidates", p.Candidates))
	}
	n.logger.Info(string(event.Type), fields...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("team", string(event.Team)),
		zap.String("actor_kind", string(event.Actor.Kind)),
		zap.String("actor_id", event.Actor.ID),
	}
}

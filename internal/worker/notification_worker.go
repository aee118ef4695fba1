package worker

import (
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/service"
)

// StartNotificationWorker wires notification subscribers onto the dispatcher
// and, when configured, forwards every event to NATS.
func StartNotificationWorker(d events.Dispatcher, ns *service.NotificationService, bridge *events.NATSBridge) {
	if ns != nil {
		ns.RegisterHandlers()
	}
	if bridge != nil && d != nil {
		bridge.Attach(d)
	}
}

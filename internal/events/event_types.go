package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketResolved    EventType = "ticket_resolved"
	EventTicketReopened    EventType = "ticket_reopened"
	EventSLABreached       EventType = "sla_breached"
	EventAutoCloseWarning  EventType = "auto_close_warning"
	EventAutoCloseExecuted EventType = "auto_close_executed"
	EventDuplicateFound    EventType = "duplicate_found"
)

// EventTypes lists every event the engine emits.
func EventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketAssigned,
		EventTicketResolved,
		EventTicketReopened,
		EventSLABreached,
		EventAutoCloseWarning,
		EventAutoCloseExecuted,
		EventDuplicateFound,
	}
}

// ActorKind tells who caused an event.
type ActorKind string

const (
	ActorUser   ActorKind = "user"
	ActorStaff  ActorKind = "staff"
	ActorSystem ActorKind = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// SystemActor is used by sweeps.
var SystemActor = Actor{Kind: ActorSystem}

// Event represents a domain event emitted by the engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Team      domain.Team `json:"team,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event with a fresh id.
func New(eventType EventType, ticket *domain.Ticket, actor Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		Team:      ticket.Team,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	PriorityKey domain.PriorityKey `json:"priority_key"`
	Creator     string             `json:"creator"`
	SLADeadline time.Time          `json:"sla_deadline"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Assignee string `json:"assignee"`
}

// ResolutionReason distinguishes normal resolution from merge.
type ResolutionReason string

const (
	ResolutionManual ResolutionReason = "manual"
	ResolutionMerged ResolutionReason = "merged"
)

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Reason     ResolutionReason `json:"reason"`
	MergedInto string           `json:"merged_into,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	From        domain.TicketStatus `json:"from"`
	SLABreached bool                `json:"sla_breached"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	PriorityKey       domain.PriorityKey `json:"priority_key"`
	EscalationTargets []string           `json:"escalation_targets"`
	Deadline          time.Time          `json:"deadline"`
	Assignee          *string            `json:"assignee,omitempty"`
}

// AutoClosePayload payload shared by warning and close events.
type AutoClosePayload struct {
	ResolvedAt time.Time     `json:"resolved_at"`
	Inactive   time.Duration `json:"inactive"`
	CloseAt    time.Time     `json:"close_at"`
}

// DuplicateFoundPayload payload.
type DuplicateFoundPayload struct {
	Title      string   `json:"title"`
	Candidates []string `json:"candidates"`
}

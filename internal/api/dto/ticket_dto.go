package dto

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Team        string   `json:"team"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	Creator     string   `json:"creator"`
}

// CreateTicketResponse wraps the created ticket and any likely duplicates.
type CreateTicketResponse struct {
	Ticket     TicketResponse `json:"ticket"`
	Duplicates []string       `json:"duplicates"`
}

// AssignRequest payload. An empty assignee assigns the caller.
type AssignRequest struct {
	Assignee string `json:"assignee"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TagRequest payload.
type TagRequest struct {
	Tag domain.Tag `json:"tag"`
}

// NoteRequest payload.
type NoteRequest struct {
	Content string `json:"content"`
	Private bool   `json:"private"`
}

// MergeRequest payload.
type MergeRequest struct {
	DuplicateID string `json:"duplicate_id"`
}

// ChangedResponse reports whether an idempotent operation changed anything.
type ChangedResponse struct {
	TicketID string `json:"ticket_id"`
	Changed  bool   `json:"changed"`
}

// TicketResponse is a ticket with its SLA readout.
type TicketResponse struct {
	*domain.Ticket
	SLA sla.Status `json:"sla"`
}

// MergeResponse returns both sides of a merge.
type MergeResponse struct {
	Primary   TicketResponse `json:"primary"`
	Duplicate TicketResponse `json:"duplicate"`
}

// AutoCloseResponse reports auto-close progress of a resolved ticket.
type AutoCloseResponse struct {
	TicketID   string     `json:"ticket_id"`
	Tracked    bool       `json:"tracked"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	WarnedAt   *time.Time `json:"warned_at,omitempty"`
}

// LoginRequest payload.
type LoginRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

// LoginResponse payload.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

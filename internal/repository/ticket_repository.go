package repository

import (
	"context"
	"sort"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

// TicketFilter narrows a Find call. Nil fields match everything.
type TicketFilter struct {
	Team     *domain.Team
	Statuses []domain.TicketStatus
	Creator  *string
	Assignee *string
	Limit    int
}

// TicketRepository is the durable mirror of the ticket registry.
type TicketRepository interface {
	Upsert(ctx context.Context, record domain.TicketRecord) error
	Find(ctx context.Context, filter TicketFilter) ([]domain.TicketRecord, error)
	Delete(ctx context.Context, ticketID string) (bool, error)
}

func (f TicketFilter) matches(t *domain.Ticket) bool {
	if f.Team != nil && t.Team != *f.Team {
		return false
	}
	if f.Creator != nil && t.Creator != *f.Creator {
		return false
	}
	if f.Assignee != nil && (t.Assignee == nil || *t.Assignee != *f.Assignee) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if t.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func sortNewestFirst(records []domain.TicketRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Ticket.CreatedAt.After(records[j].Ticket.CreatedAt)
	})
}

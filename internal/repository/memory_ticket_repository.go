package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

// MemoryTicketRepository keeps records in process. Used when no store is
// configured and in tests.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	records map[string]domain.TicketRecord
}

// NewMemoryTicketRepository instantiates repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{records: make(map[string]domain.TicketRecord)}
}

func (r *MemoryTicketRepository) Upsert(_ context.Context, record domain.TicketRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.Ticket.ID] = copyRecord(record)
	return nil
}

func (r *MemoryTicketRepository) Find(_ context.Context, filter TicketFilter) ([]domain.TicketRecord, error) {
	r.mu.RLock()
	out := make([]domain.TicketRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter.matches(&rec.Ticket) {
			out = append(out, copyRecord(rec))
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryTicketRepository) Delete(_ context.Context, ticketID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[ticketID]; !ok {
		return false, nil
	}
	delete(r.records, ticketID)
	return true, nil
}

// Get returns the stored record for id.
func (r *MemoryTicketRepository) Get(ticketID string) (domain.TicketRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[ticketID]
	if !ok {
		return domain.TicketRecord{}, false
	}
	return copyRecord(rec), true
}

func copyRecord(rec domain.TicketRecord) domain.TicketRecord {
	return domain.TicketRecord{
		Ticket:    *rec.Ticket.Clone(),
		AutoClose: rec.AutoClose.Clone(),
	}
}

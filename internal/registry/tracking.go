package registry

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

// Tracked is a resolved ticket awaiting auto-close.
type Tracked struct {
	Ticket   *domain.Ticket
	Tracking domain.AutoCloseTracking
}

// AutoCloseCandidates lists tickets with open auto-close tracking.
func (r *Registry) AutoCloseCandidates() []Tracked {
	var out []Tracked
	for _, e := range r.snapshotEntries() {
		e.mu.Lock()
		if !e.removed && e.ticket.MergedWith == nil && e.autoClose != nil && e.autoClose.ClosedAt == nil {
			out = append(out, Tracked{Ticket: e.ticket.Clone(), Tracking: *e.autoClose.Clone()})
		}
		e.mu.Unlock()
	}
	return out
}

// Tracking returns the auto-close tracking of id, if any.
func (r *Registry) Tracking(id string) (*domain.AutoCloseTracking, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, notFound(id)
	}
	return e.autoClose.Clone(), nil
}

// MarkAutoCloseWarned stamps the warning on a tracked ticket once after has
// elapsed since resolution. Only the first caller gets true.
func (r *Registry) MarkAutoCloseWarned(ctx context.Context, id string, after time.Duration) (*Tracked, bool, error) {
	var out *Tracked
	_, changed, err := r.mutate(ctx, id, "auto_close_warn", func(e *entry, now time.Time) (bool, error) {
		ac := e.autoClose
		if ac == nil || e.ticket.MergedWith != nil || ac.WarnedAt != nil || ac.ClosedAt != nil || now.Sub(ac.ResolvedAt) < after {
			return false, nil
		}
		warned := now
		ac.WarnedAt = &warned
		out = &Tracked{Ticket: e.ticket.Clone(), Tracking: *ac.Clone()}
		return true, nil
	})
	return out, changed, err
}

// ExecuteAutoClose closes a warned ticket once after has elapsed since
// resolution, removing it from the registry and from persistence. This is
// the only path that deletes tickets.
func (r *Registry) ExecuteAutoClose(ctx context.Context, id string, after time.Duration) (*Tracked, bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false, notFound(id)
	}
	ac := e.autoClose
	now := r.clock.Now()
	if ac == nil || e.ticket.MergedWith != nil || ac.WarnedAt == nil || ac.ClosedAt != nil || now.Sub(ac.ResolvedAt) < after {
		return nil, false, nil
	}
	closed := now
	ac.ClosedAt = &closed
	e.removed = true

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()

	r.deleteRecord(ctx, id)
	return &Tracked{Ticket: e.ticket.Clone(), Tracking: *ac.Clone()}, true, nil
}

package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// MergeResult carries both tickets after a merge.
type MergeResult struct {
	Primary   *domain.Ticket
	Duplicate *domain.Ticket
}

// Merge marks duplicateID as a duplicate of primaryID. The duplicate is
// tagged, annotated, cross-referenced and force-resolved even when it was
// never assigned.
func (r *Registry) Merge(ctx context.Context, primaryID, duplicateID, actor string) (*MergeResult, error) {
	if primaryID == duplicateID {
		return nil, apperrors.NewPolicyViolation("ticket cannot be merged into itself",
			map[string]any{"ticket_id": primaryID})
	}
	primary, err := r.lookup(primaryID)
	if err != nil {
		return nil, err
	}
	dup, err := r.lookup(duplicateID)
	if err != nil {
		return nil, err
	}

	first, second := primary, dup
	if duplicateID < primaryID {
		first, second = dup, primary
	}
	first.mu.Lock()
	second.mu.Lock()
	result, now, err := r.mergeLocked(ctx, primary, dup)
	second.mu.Unlock()
	first.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.emitter.Emit(ctx, events.New(events.EventTicketResolved, result.Duplicate,
		events.Actor{Kind: events.ActorStaff, ID: actor}, now,
		events.TicketResolvedPayload{Reason: events.ResolutionMerged, MergedInto: primaryID}))
	return result, nil
}

func (r *Registry) mergeLocked(ctx context.Context, primary, dup *entry) (*MergeResult, time.Time, error) {
	if primary.removed {
		return nil, time.Time{}, notFound(primary.ticket.ID)
	}
	if dup.removed {
		return nil, time.Time{}, notFound(dup.ticket.ID)
	}
	p, d := primary.ticket, dup.ticket
	if d.MergedWith != nil {
		return nil, time.Time{}, apperrors.NewConflict("ticket already merged",
			map[string]any{"ticket_id": d.ID, "merged_with": *d.MergedWith})
	}
	if p.MergedWith != nil {
		return nil, time.Time{}, apperrors.NewConflict("primary ticket is itself a duplicate",
			map[string]any{"ticket_id": p.ID, "merged_with": *p.MergedWith})
	}

	now := r.clock.Now()
	_, _ = d.AddTag(domain.TagDuplicate)
	d.Description += fmt.Sprintf("\n\n---\nDuplicate of %s", p.ID)
	d.ForceResolve(now)
	// Merged duplicates are retained, never auto-closed.
	dup.autoClose = nil
	ref := p.ID
	d.MergedWith = &ref
	d.UpdatedAt = now

	p.MergedTickets = append(p.MergedTickets, d.ID)
	p.UpdatedAt = now

	r.persist(ctx, dup, "merge")
	r.persist(ctx, primary, "merge")
	return &MergeResult{Primary: p.Clone(), Duplicate: d.Clone()}, now, nil
}

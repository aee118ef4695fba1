package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

var allowedTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:     {StatusProgress},
	StatusProgress: {StatusResolved, StatusOpen},
	StatusResolved: {StatusOpen},
}

// CanTransition reports whether current -> next is a legal status change.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition moves the ticket to next on behalf of actor. Moving to progress
// assigns actor; moving to open is a reopen.
func (t *Ticket) Transition(next TicketStatus, actor string, now time.Time) error {
	switch next {
	case StatusProgress:
		return t.Assign(actor, now)
	case StatusResolved:
		return t.Resolve(now)
	case StatusOpen:
		return t.Reopen(now)
	default:
		return apperrors.NewInvalidTransition(t.ID, t.Status, next)
	}
}

// Assign takes an open ticket into progress. A ticket that already has an
// owner reports AlreadyAssigned so a losing concurrent claim can tell the
// difference from an illegal move.
func (t *Ticket) Assign(assignee string, now time.Time) error {
	if strings.TrimSpace(assignee) == "" {
		return apperrors.NewPolicyViolation("assignee required", map[string]any{"ticket_id": t.ID})
	}
	if t.Status == StatusProgress && t.Assignee != nil {
		return apperrors.NewAlreadyAssigned(t.ID, *t.Assignee)
	}
	if !CanTransition(t.Status, StatusProgress) {
		return apperrors.NewInvalidTransition(t.ID, t.Status, StatusProgress)
	}
	if t.Assignee != nil {
		return apperrors.NewAlreadyAssigned(t.ID, *t.Assignee)
	}
	t.Status = StatusProgress
	t.Assignee = &assignee
	t.AssignedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// Resolve stamps the resolution time on a ticket in progress.
func (t *Ticket) Resolve(now time.Time) error {
	if !CanTransition(t.Status, StatusResolved) {
		return apperrors.NewInvalidTransition(t.ID, t.Status, StatusResolved)
	}
	t.Status = StatusResolved
	t.ResolvedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// Reopen sends a ticket back to open. SLA breach state and deadline are
// left untouched. A ticket merged into another stays resolved.
func (t *Ticket) Reopen(now time.Time) error {
	if t.MergedWith != nil || !CanTransition(t.Status, StatusOpen) {
		return apperrors.NewInvalidTransition(t.ID, t.Status, StatusOpen)
	}
	t.Status = StatusOpen
	t.Assignee = nil
	t.AssignedAt = nil
	t.ResolvedAt = nil
	t.UpdatedAt = now
	return nil
}

// ForceResolve resolves the ticket regardless of assignment. Used only when
// a ticket is merged into another as a duplicate.
func (t *Ticket) ForceResolve(now time.Time) {
	if t.Status == StatusResolved {
		return
	}
	t.Status = StatusResolved
	t.ResolvedAt = timePtr(now)
	t.UpdatedAt = now
}

package sla

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

// PauseTag is applied while the SLA clock is stopped.
const PauseTag = domain.TagWaitingOnUser

// Deadline returns the wall-clock SLA deadline for a ticket created at
// createdAt with the given priority.
func Deadline(createdAt time.Time, key domain.PriorityKey) time.Time {
	return domain.PolicyFor(key).DeadlineFrom(createdAt)
}

// Pause stops the SLA clock. It reports false when the clock was already
// paused.
func Pause(t *domain.Ticket, now time.Time) bool {
	if t.SLAPaused {
		return false
	}
	t.SLAPaused = true
	pausedAt := now
	t.SLAPausedAt = &pausedAt
	_, _ = t.AddTag(PauseTag)
	t.UpdatedAt = now
	return true
}

// Resume restarts the SLA clock and pushes the deadline back by the time
// spent paused. It reports false when the clock was not paused.
func Resume(t *domain.Ticket, now time.Time) bool {
	if !t.SLAPaused {
		return false
	}
	if t.SLAPausedAt != nil {
		if paused := now.Sub(*t.SLAPausedAt); paused > 0 {
			t.SLADeadline = t.SLADeadline.Add(paused)
		}
	}
	t.SLAPaused = false
	t.SLAPausedAt = nil
	_, _ = t.RemoveTag(PauseTag)
	t.UpdatedAt = now
	return true
}

// Remaining is the time left until the deadline, never negative.
func Remaining(t *domain.Ticket, now time.Time) time.Duration {
	if left := t.SLADeadline.Sub(now); left > 0 {
		return left
	}
	return 0
}

// PercentElapsed is the share of the SLA window already consumed. It can
// exceed 100 once the deadline has passed.
func PercentElapsed(t *domain.Ticket, now time.Time) float64 {
	total := t.SLADeadline.Sub(t.CreatedAt)
	if total <= 0 {
		return 100
	}
	return float64(now.Sub(t.CreatedAt)) / float64(total) * 100
}

// Overdue reports whether the deadline has been reached.
func Overdue(t *domain.Ticket, now time.Time) bool {
	return !now.Before(t.SLADeadline)
}

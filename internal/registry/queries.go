package registry

import (
	"sort"
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// DefaultLimit caps Search results when Filter.Limit is zero.
const DefaultLimit = 100

// NoLimit disables the result cap.
const NoLimit = -1

// Filter selects tickets. Nil fields match everything; Tags must all be set.
type Filter struct {
	Team          *domain.Team
	Status        *domain.TicketStatus
	Creator       *string
	Assignee      *string
	Priority      *domain.PriorityKey
	Tags          []domain.Tag
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SLABreached   *bool
	ActiveOnly    bool
	Limit         int
}

func (f Filter) matches(t *domain.Ticket) bool {
	switch {
	case f.Team != nil && t.Team != *f.Team:
		return false
	case f.Status != nil && t.Status != *f.Status:
		return false
	case f.Creator != nil && t.Creator != *f.Creator:
		return false
	case f.Assignee != nil && (t.Assignee == nil || *t.Assignee != *f.Assignee):
		return false
	case f.Priority != nil && t.PriorityKey != *f.Priority:
		return false
	case f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && t.CreatedAt.After(*f.CreatedBefore):
		return false
	case f.SLABreached != nil && t.SLABreached != *f.SLABreached:
		return false
	case f.ActiveOnly && !t.Active():
		return false
	}
	for _, tag := range f.Tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	return true
}

// Get returns a snapshot of the ticket.
func (r *Registry) Get(id string) (*domain.Ticket, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, notFound(id)
	}
	return e.ticket.Clone(), nil
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of registered tickets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Search returns matching tickets newest first. The limit is applied after
// sorting.
func (r *Registry) Search(f Filter) []*domain.Ticket {
	var out []*domain.Ticket
	for _, e := range r.snapshotEntries() {
		e.mu.Lock()
		if !e.removed && f.matches(e.ticket) {
			out = append(out, e.ticket.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	limit := f.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// All returns every registered ticket.
func (r *Registry) All() []*domain.Ticket {
	return r.Search(Filter{Limit: NoLimit})
}

// Active returns unresolved tickets.
func (r *Registry) Active() []*domain.Ticket {
	return r.Search(Filter{ActiveOnly: true, Limit: NoLimit})
}

// ByTeam returns the team's tickets.
func (r *Registry) ByTeam(team domain.Team) []*domain.Ticket {
	return r.Search(Filter{Team: &team, Limit: NoLimit})
}

// ByStatus returns tickets in status.
func (r *Registry) ByStatus(status domain.TicketStatus) []*domain.Ticket {
	return r.Search(Filter{Status: &status, Limit: NoLimit})
}

// ByAssignee returns tickets owned by assignee.
func (r *Registry) ByAssignee(assignee string) []*domain.Ticket {
	return r.Search(Filter{Assignee: &assignee, Limit: NoLimit})
}

// ByCreator returns tickets opened by creator.
func (r *Registry) ByCreator(creator string) []*domain.Ticket {
	return r.Search(Filter{Creator: &creator, Limit: NoLimit})
}

// TeamStats counts a team's tickets.
type TeamStats struct {
	Team     domain.Team `json:"team"`
	Total    int         `json:"total"`
	Open     int         `json:"open"`
	Progress int         `json:"progress"`
	Resolved int         `json:"resolved"`
	Breached int         `json:"breached"`
	Paused   int         `json:"paused"`
	Active   int         `json:"active"`
}

// TeamStatistics summarizes the team's tickets.
func (r *Registry) TeamStatistics(team domain.Team) TeamStats {
	stats := TeamStats{Team: team}
	for _, t := range r.ByTeam(team) {
		stats.Total++
		switch t.Status {
		case domain.StatusOpen:
			stats.Open++
		case domain.StatusProgress:
			stats.Progress++
		case domain.StatusResolved:
			stats.Resolved++
		}
		if t.SLABreached {
			stats.Breached++
		}
		if t.SLAPaused {
			stats.Paused++
		}
	}
	stats.Active = stats.Open + stats.Progress
	return stats
}

// CountByStatus returns registry sizes keyed by status.
func (r *Registry) CountByStatus() map[string]int {
	counts := map[string]int{
		string(domain.StatusOpen):     0,
		string(domain.StatusProgress): 0,
		string(domain.StatusResolved): 0,
	}
	for _, t := range r.All() {
		counts[string(t.Status)]++
	}
	return counts
}

// SLAAttention returns unresolved, unpaused tickets that are past their
// deadline or have at most percentRemaining of their SLA window left, most
// urgent deadline first.
func (r *Registry) SLAAttention(percentRemaining float64) []*domain.Ticket {
	now := r.clock.Now()
	var out []*domain.Ticket
	for _, t := range r.Active() {
		if t.SLAPaused {
			continue
		}
		if sla.Overdue(t, now) || 100-sla.PercentElapsed(t, now) <= percentRemaining {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SLADeadline.Before(out[j].SLADeadline) })
	return out
}

func (r *Registry) snapshotEntries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	StatusOpen     TicketStatus = "open"
	StatusProgress TicketStatus = "progress"
	StatusResolved TicketStatus = "resolved"
)

// Content limits, measured in characters after sanitization.
const (
	TitleMinLen       = 3
	TitleMaxLen       = 256
	DescriptionMinLen = 10
	DescriptionMaxLen = 4000
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusProgress, StatusResolved:
		return true
	}
	return false
}

// Note is a staff comment attached to a ticket.
type Note struct {
	Author    string    `json:"author" bson:"author"`
	Content   string    `json:"content" bson:"content"`
	Private   bool      `json:"private" bson:"private"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Ticket is the aggregate tracked by the SLA engine.
type Ticket struct {
	ID            string       `json:"ticket_id" bson:"ticket_id"`
	Team          Team         `json:"team" bson:"team"`
	Type          string       `json:"type" bson:"type"`
	Title         string       `json:"title" bson:"title"`
	Description   string       `json:"description" bson:"description"`
	Tags          []Tag        `json:"tags" bson:"tags"`
	PriorityKey   PriorityKey  `json:"priority_key" bson:"priority_key"`
	SLAHours      int          `json:"sla_hours" bson:"sla_hours"`
	Status        TicketStatus `json:"status" bson:"status"`
	Creator       string       `json:"creator" bson:"creator"`
	Assignee      *string      `json:"assignee,omitempty" bson:"assignee,omitempty"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" bson:"updated_at"`
	AssignedAt    *time.Time   `json:"assigned_at,omitempty" bson:"assigned_at,omitempty"`
	SLADeadline   time.Time    `json:"sla_deadline" bson:"sla_deadline"`
	SLAPaused     bool         `json:"sla_paused" bson:"sla_paused"`
	SLAPausedAt   *time.Time   `json:"sla_paused_at,omitempty" bson:"sla_paused_at,omitempty"`
	SLABreached   bool         `json:"sla_breached" bson:"sla_breached"`
	EscalatedAt   *time.Time   `json:"escalated_at,omitempty" bson:"escalated_at,omitempty"`
	ResolvedAt    *time.Time   `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	MergedWith    *string      `json:"merged_with,omitempty" bson:"merged_with,omitempty"`
	MergedTickets []string     `json:"merged_tickets,omitempty" bson:"merged_tickets,omitempty"`
	Notes         []Note       `json:"notes,omitempty" bson:"notes,omitempty"`
}

// NewTicketParams carries already-sanitized intake data.
type NewTicketParams struct {
	ID          string
	Team        Team
	Type        string
	Title       string
	Description string
	Creator     string
	PriorityKey PriorityKey
	Tags        []Tag
	CreatedAt   time.Time
}

// TicketID formats the canonical identifier <team>-<creationEpochMillis>.
func TicketID(team Team, createdAt time.Time) string {
	return fmt.Sprintf("%s-%d", team, createdAt.UnixMilli())
}

// NewTicket validates params and builds an open ticket with its SLA deadline.
// Nothing is returned on a policy violation.
func NewTicket(p NewTicketParams) (*Ticket, error) {
	profile, ok := LookupTeam(p.Team)
	if !ok {
		return nil, apperrors.NewPolicyViolation("unknown team", map[string]any{"team": p.Team})
	}
	if !profile.AllowsType(p.Type) {
		return nil, apperrors.NewPolicyViolation("ticket type not offered by team",
			map[string]any{"team": p.Team, "type": p.Type})
	}
	policy, ok := LookupPolicy(p.PriorityKey)
	if !ok {
		return nil, apperrors.NewPolicyViolation("unknown priority key", map[string]any{"priority_key": p.PriorityKey})
	}
	if n := utf8.RuneCountInString(p.Title); n < TitleMinLen || n > TitleMaxLen {
		return nil, apperrors.NewPolicyViolation("title length out of range",
			map[string]any{"min": TitleMinLen, "max": TitleMaxLen, "length": n})
	}
	if n := utf8.RuneCountInString(p.Description); n < DescriptionMinLen || n > DescriptionMaxLen {
		return nil, apperrors.NewPolicyViolation("description length out of range",
			map[string]any{"min": DescriptionMinLen, "max": DescriptionMaxLen, "length": n})
	}
	if strings.TrimSpace(p.Creator) == "" {
		return nil, apperrors.NewPolicyViolation("creator required", nil)
	}
	if p.CreatedAt.IsZero() {
		return nil, apperrors.NewPolicyViolation("creation time required", nil)
	}

	tags := make([]Tag, 0, len(p.Tags))
	for _, tag := range p.Tags {
		if !tag.Valid() {
			return nil, apperrors.NewPolicyViolation("unknown tag", map[string]any{"tag": tag})
		}
		if !containsTag(tags, tag) {
			tags = append(tags, tag)
		}
	}

	id := p.ID
	if id == "" {
		id = TicketID(p.Team, p.CreatedAt)
	}

	return &Ticket{
		ID:          id,
		Team:        p.Team,
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		Tags:        tags,
		PriorityKey: policy.Key,
		SLAHours:    policy.Hours,
		Status:      StatusOpen,
		Creator:     p.Creator,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.CreatedAt,
		SLADeadline: policy.DeadlineFrom(p.CreatedAt),
	}, nil
}

// HasTag reports whether tag is set.
func (t *Ticket) HasTag(tag Tag) bool {
	return containsTag(t.Tags, tag)
}

// AddTag adds tag, returning false when it was already present.
func (t *Ticket) AddTag(tag Tag) (bool, error) {
	if !tag.Valid() {
		return false, apperrors.NewPolicyViolation("unknown tag", map[string]any{"tag": tag})
	}
	if t.HasTag(tag) {
		return false, nil
	}
	t.Tags = append(t.Tags, tag)
	return true, nil
}

// RemoveTag removes tag, returning false when it was not present.
func (t *Ticket) RemoveTag(tag Tag) (bool, error) {
	if !tag.Valid() {
		return false, apperrors.NewPolicyViolation("unknown tag", map[string]any{"tag": tag})
	}
	for i, existing := range t.Tags {
		if existing == tag {
			t.Tags = append(t.Tags[:i], t.Tags[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// MarkBreached flags the SLA as breached and tags the ticket escalated.
// It returns false if the ticket was already breached.
func (t *Ticket) MarkBreached(now time.Time) bool {
	if t.SLABreached {
		return false
	}
	t.SLABreached = true
	t.EscalatedAt = timePtr(now)
	_, _ = t.AddTag(TagEscalated)
	t.UpdatedAt = now
	return true
}

// AddNote appends a staff note.
func (t *Ticket) AddNote(author, content string, private bool, now time.Time) error {
	if strings.TrimSpace(author) == "" || strings.TrimSpace(content) == "" {
		return apperrors.NewPolicyViolation("note author and content required", nil)
	}
	t.Notes = append(t.Notes, Note{Author: author, Content: content, Private: private, CreatedAt: now})
	t.UpdatedAt = now
	return nil
}

// Active reports whether the ticket still counts against its team's queue.
func (t *Ticket) Active() bool {
	return t.Status != StatusResolved
}

// Clone returns a deep copy safe to hand to readers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]Tag(nil), t.Tags...)
	c.MergedTickets = append([]string(nil), t.MergedTickets...)
	c.Notes = append([]Note(nil), t.Notes...)
	c.Assignee = stringPtrCopy(t.Assignee)
	c.MergedWith = stringPtrCopy(t.MergedWith)
	c.AssignedAt = timePtrCopy(t.AssignedAt)
	c.SLAPausedAt = timePtrCopy(t.SLAPausedAt)
	c.EscalatedAt = timePtrCopy(t.EscalatedAt)
	c.ResolvedAt = timePtrCopy(t.ResolvedAt)
	return &c
}

func containsTag(tags []Tag, tag Tag) bool {
	for _, existing := range tags {
		if existing == tag {
			return true
		}
	}
	return false
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func timePtrCopy(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func stringPtrCopy(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

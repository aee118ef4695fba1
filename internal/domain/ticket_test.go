package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newTestTicket(t *testing.T) *Ticket {
	t.Helper()
	tk, err := NewTicket(NewTicketParams{
		Team:        TeamDev,
		Type:        "bug",
		Title:       "Login broken",
		Description: "Users cannot sign in since the last deploy",
		Creator:     "user-1",
		PriorityKey: PriorityP1,
		CreatedAt:   t0,
	})
	require.NoError(t, err)
	return tk
}

func TestNewTicket_SetsDeadlineAndID(t *testing.T) {
	tk := newTestTicket(t)

	assert.Equal(t, "dev-1741003200000", tk.ID)
	assert.Equal(t, StatusOpen, tk.Status)
	assert.Equal(t, 48, tk.SLAHours)
	assert.Equal(t, t0.Add(48*time.Hour), tk.SLADeadline)
	assert.Nil(t, tk.Assignee)
	assert.Nil(t, tk.ResolvedAt)
}

func TestNewTicket_PolicyViolations(t *testing.T) {
	base := NewTicketParams{
		Team:        TeamDev,
		Type:        "bug",
		Title:       "Login broken",
		Description: "Users cannot sign in since the last deploy",
		Creator:     "user-1",
		PriorityKey: PriorityP2,
		CreatedAt:   t0,
	}

	cases := map[string]func(p *NewTicketParams){
		"unknown team":      func(p *NewTicketParams) { p.Team = "ops" },
		"foreign type":      func(p *NewTicketParams) { p.Type = "evento" },
		"unknown priority":  func(p *NewTicketParams) { p.PriorityKey = "alta" },
		"short title":       func(p *NewTicketParams) { p.Title = "ab" },
		"long title":        func(p *NewTicketParams) { p.Title = strings.Repeat("x", TitleMaxLen+1) },
		"short description": func(p *NewTicketParams) { p.Description = "too short" },
		"missing creator":   func(p *NewTicketParams) { p.Creator = " " },
		"unknown tag":       func(p *NewTicketParams) { p.Tags = []Tag{"shiny"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			tk, err := NewTicket(p)
			assert.Nil(t, tk)
			assert.True(t, errors.Is(err, apperrors.ErrPolicyViolation), "got %v", err)
		})
	}
}

func TestNewTicket_DeduplicatesTags(t *testing.T) {
	tk, err := NewTicket(NewTicketParams{
		Team:        TeamComercial,
		Type:        "suporte",
		Title:       "Invoice missing",
		Description: "The March invoice never arrived",
		Creator:     "user-2",
		PriorityKey: PriorityP3,
		Tags:        []Tag{TagUrgent, TagUrgent, TagBlocked},
		CreatedAt:   t0,
	})
	require.NoError(t, err)
	assert.Equal(t, []Tag{TagUrgent, TagBlocked}, tk.Tags)
}

func TestTags_AddRemoveReportChange(t *testing.T) {
	tk := newTestTicket(t)

	added, err := tk.AddTag(TagBlocked)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = tk.AddTag(TagBlocked)
	require.NoError(t, err)
	assert.False(t, added, "second add is a no-op")

	removed, err := tk.RemoveTag(TagBlocked)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = tk.RemoveTag(TagBlocked)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = tk.AddTag("nope")
	assert.True(t, errors.Is(err, apperrors.ErrPolicyViolation))
}

func TestMarkBreached_OnlyOnce(t *testing.T) {
	tk := newTestTicket(t)
	now := t0.Add(49 * time.Hour)

	assert.True(t, tk.MarkBreached(now))
	assert.False(t, tk.MarkBreached(now.Add(time.Hour)))
	assert.True(t, tk.SLABreached)
	assert.True(t, tk.HasTag(TagEscalated))
	require.NotNil(t, tk.EscalatedAt)
	assert.Equal(t, now, *tk.EscalatedAt)
}

func TestClone_IsDeep(t *testing.T) {
	tk := newTestTicket(t)
	require.NoError(t, tk.Assign("agent-1", t0))
	_, _ = tk.AddTag(TagUrgent)

	c := tk.Clone()
	*c.Assignee = "someone-else"
	c.Tags[0] = TagBlocked

	assert.Equal(t, "agent-1", *tk.Assignee)
	assert.Equal(t, TagUrgent, tk.Tags[0])
}

func TestNormalizePriority(t *testing.T) {
	for raw, want := range map[string]PriorityKey{
		"P0": PriorityP0, " alta ": PriorityP1, "Média": PriorityP2, "low": PriorityP3,
	} {
		got, ok := NormalizePriority(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := NormalizePriority("whenever")
	assert.False(t, ok)
}

func TestPolicy_EscalatesOnlyTopTwo(t *testing.T) {
	for _, key := range Priorities() {
		p := PolicyFor(key)
		assert.Equal(t, p.Rank <= 1, p.Escalates, key)
	}
	assert.Equal(t, []PriorityKey{PriorityP0, PriorityP1, PriorityP2, PriorityP3}, Priorities())
	assert.Panics(t, func() { PolicyFor("p9") })
}

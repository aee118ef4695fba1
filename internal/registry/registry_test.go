package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/repository"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	reg   *Registry
	repo  *repository.MemoryTicketRepository
	rec   *events.Recorder
	clock *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  repository.NewMemoryTicketRepository(),
		rec:   &events.Recorder{},
		clock: clock.NewFake(t0),
	}
	f.reg = New(Options{
		Repository:   f.repo,
		Publisher:    f.rec,
		Clock:        f.clock,
		WriteBackoff: time.Millisecond,
	})
	return f
}

func (f *fixture) add(t *testing.T, team domain.Team, typ, title string, key domain.PriorityKey) *domain.Ticket {
	t.Helper()
	now := f.clock.Now()
	tk, err := domain.NewTicket(domain.NewTicketParams{
		Team:        team,
		Type:        typ,
		Title:       title,
		Description: "Something is not working as expected",
		Creator:     "user-1",
		PriorityKey: key,
		CreatedAt:   now,
	})
	require.NoError(t, err)
	added, err := f.reg.Add(context.Background(), tk)
	require.NoError(t, err)
	f.clock.Advance(time.Millisecond)
	return added
}

func TestAdd_PersistsAndEmitsCreated(t *testing.T) {
	f := newFixture(t)
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP1)

	stored, ok := f.repo.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, tk.Title, stored.Ticket.Title)
	assert.Nil(t, stored.AutoClose)

	created := f.rec.OfType(events.EventTicketCreated)
	require.Len(t, created, 1)
	assert.Equal(t, tk.ID, created[0].TicketID)
	assert.NotEmpty(t, created[0].ID)
}

func TestAdd_RejectsDuplicateID(t *testing.T) {
	f := newFixture(t)
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP1)

	_, err := f.reg.Add(context.Background(), tk)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestLifecycle_ReopenPreservesSLAHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP0)

	_, err := f.reg.Assign(ctx, tk.ID, "agent-1")
	require.NoError(t, err)

	f.clock.Set(t0.Add(25 * time.Hour))
	_, breached, err := f.reg.MarkBreached(ctx, tk.ID)
	require.NoError(t, err)
	require.True(t, breached)

	resolved, err := f.reg.Resolve(ctx, tk.ID, "agent-1")
	require.NoError(t, err)
	tracking, err := f.reg.Tracking(tk.ID)
	require.NoError(t, err)
	require.NotNil(t, tracking)
	assert.Equal(t, *resolved.ResolvedAt, tracking.ResolvedAt)

	reopened, err := f.reg.Reopen(ctx, tk.ID, "agent-1")
	require.NoError(t, err)
	assert.True(t, reopened.SLABreached)
	assert.Equal(t, tk.SLADeadline, reopened.SLADeadline)
	assert.Nil(t, reopened.Assignee)

	tracking, err = f.reg.Tracking(tk.ID)
	require.NoError(t, err)
	assert.Nil(t, tracking, "reopen cancels auto-close tracking")

	stored, _ := f.repo.Get(tk.ID)
	assert.Equal(t, domain.StatusOpen, stored.Ticket.Status)
	assert.Nil(t, stored.AutoClose)

	assert.Len(t, f.rec.OfType(events.EventTicketAssigned), 1)
	assert.Len(t, f.rec.OfType(events.EventTicketResolved), 1)
	assert.Len(t, f.rec.OfType(events.EventTicketReopened), 1)
}

func TestTransition_ResolvedToProgressIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP2)

	_, err := f.reg.Transition(ctx, tk.ID, domain.StatusProgress, "agent-1")
	require.NoError(t, err)
	_, err = f.reg.Transition(ctx, tk.ID, domain.StatusResolved, "agent-1")
	require.NoError(t, err)

	_, err = f.reg.Transition(ctx, tk.ID, domain.StatusProgress, "agent-1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition), "got %v", err)

	got, err := f.reg.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)
}

func TestAssign_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP2)

	var wins, lost atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reg.Assign(context.Background(), tk.ID, "agent")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperrors.ErrAlreadyAssigned):
				lost.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), lost.Load())
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reg.Assign(ctx, "dev-1", "agent")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.reg.Get("dev-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.reg.PauseSLA(ctx, "dev-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPauseResume_ThroughRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP1)

	f.clock.Set(t0.Add(time.Hour))
	paused, err := f.reg.PauseSLA(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, paused)
	paused, err = f.reg.PauseSLA(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, paused)

	f.clock.Set(t0.Add(5 * time.Hour))
	resumed, err := f.reg.ResumeSLA(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, resumed)

	got, _ := f.reg.Get(tk.ID)
	assert.Equal(t, tk.SLADeadline.Add(4*time.Hour), got.SLADeadline)
	stored, _ := f.repo.Get(tk.ID)
	assert.Equal(t, got.SLADeadline, stored.Ticket.SLADeadline)
}

func TestMarkBreached_Conditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP0)

	_, breached, err := f.reg.MarkBreached(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, breached, "deadline not reached")

	_, err = f.reg.PauseSLA(ctx, tk.ID)
	require.NoError(t, err)
	f.clock.Set(t0.Add(30 * time.Hour))
	_, breached, err = f.reg.MarkBreached(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, breached, "paused tickets never breach")

	_, err = f.reg.ResumeSLA(ctx, tk.ID)
	require.NoError(t, err)
	f.clock.Set(t0.Add(60 * time.Hour))
	got, breached, err := f.reg.MarkBreached(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, breached)
	assert.True(t, got.HasTag(domain.TagEscalated))

	_, breached, err = f.reg.MarkBreached(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, breached, "breach is set once")
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.add(t, domain.TeamComercial, "suporte", "Invoice missing", domain.PriorityP3)

	added, err := f.reg.AddTag(ctx, tk.ID, domain.TagBlocked)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = f.reg.AddTag(ctx, tk.ID, domain.TagBlocked)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = f.reg.AddTag(ctx, tk.ID, "bogus")
	assert.True(t, errors.Is(err, apperrors.ErrPolicyViolation))

	removed, err := f.reg.RemoveTag(ctx, tk.ID, domain.TagBlocked)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestAddNote(t *testing.T) {
	f := newFixture(t)
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP2)

	got, err := f.reg.AddNote(context.Background(), tk.ID, "agent-1", "asked for logs", true)
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.True(t, got.Notes[0].Private)

	_, err = f.reg.AddNote(context.Background(), tk.ID, "", "x", false)
	assert.True(t, errors.Is(err, apperrors.ErrPolicyViolation))
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP0)
	b := f.add(t, domain.TeamDev, "feature", "Dark mode", domain.PriorityP3)
	c := f.add(t, domain.TeamComercial, "duvida", "Pricing question", domain.PriorityP2)

	_, err := f.reg.Assign(ctx, a.ID, "agent-1")
	require.NoError(t, err)
	_, err = f.reg.AddTag(ctx, b.ID, domain.TagUrgent)
	require.NoError(t, err)

	dev := f.reg.ByTeam(domain.TeamDev)
	require.Len(t, dev, 2)
	assert.Equal(t, b.ID, dev[0].ID, "newest first")

	assert.Len(t, f.reg.ByAssignee("agent-1"), 1)
	assert.Len(t, f.reg.ByCreator("user-1"), 3)
	assert.Len(t, f.reg.ByStatus(domain.StatusOpen), 2)

	urgent := f.reg.Search(Filter{Tags: []domain.Tag{domain.TagUrgent}})
	require.Len(t, urgent, 1)
	assert.Equal(t, b.ID, urgent[0].ID)

	limited := f.reg.Search(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, c.ID, limited[0].ID, "limit applies after sorting")

	after := a.CreatedAt.Add(time.Nanosecond)
	assert.Len(t, f.reg.Search(Filter{CreatedAfter: &after}), 2)

	stats := f.reg.TeamStatistics(domain.TeamDev)
	assert.Equal(t, TeamStats{Team: domain.TeamDev, Total: 2, Open: 1, Progress: 1, Active: 2}, stats)
}

func TestQueries_ReturnSnapshots(t *testing.T) {
	f := newFixture(t)
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP2)

	got, err := f.reg.Get(tk.ID)
	require.NoError(t, err)
	got.Title = "changed"
	got.Tags = append(got.Tags, domain.TagBlocked)

	again, _ := f.reg.Get(tk.ID)
	assert.Equal(t, "Login broken", again.Title)
	assert.Empty(t, again.Tags)
}

func TestSLAAttention(t *testing.T) {
	f := newFixture(t)
	p0 := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP0)
	f.add(t, domain.TeamDev, "bug", "Typo on footer", domain.PriorityP3)

	f.clock.Set(t0.Add(20 * time.Hour))
	got := f.reg.SLAAttention(20)
	require.Len(t, got, 1)
	assert.Equal(t, p0.ID, got[0].ID)
}

func TestLoad_HydratesFromRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP2)
	_, err := f.reg.Assign(ctx, tk.ID, "agent-1")
	require.NoError(t, err)
	_, err = f.reg.Resolve(ctx, tk.ID, "agent-1")
	require.NoError(t, err)

	fresh := New(Options{Repository: f.repo, Clock: f.clock})
	n, err := fresh.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := fresh.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)
	tracking, err := fresh.Tracking(tk.ID)
	require.NoError(t, err)
	require.NotNil(t, tracking)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	a.add(t, domain.TeamDev, "bug", "Login broken", domain.PriorityP2)

	assert.Equal(t, 1, a.reg.Len())
	assert.Equal(t, 0, b.reg.Len())
}

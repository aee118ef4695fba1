package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/sla"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

type intakeFixture struct {
	svc   *TicketService
	reg   *registry.Registry
	rec   *events.Recorder
	clock *clock.Fake
}

func newIntakeFixture(limiter RateLimiter) *intakeFixture {
	f := &intakeFixture{rec: &events.Recorder{}, clock: clock.NewFake(t0)}
	f.reg = registry.New(registry.Options{Publisher: f.rec, Clock: f.clock})
	f.svc = NewTicketService(TicketDependencies{
		Registry:  f.reg,
		Limiter:   limiter,
		Publisher: f.rec,
		Clock:     f.clock,
	})
	return f
}

func validInput() TicketCreateInput {
	return TicketCreateInput{
		Team:        "dev",
		Type:        "bug",
		Title:       "Login broken",
		Description: "Cannot sign in since this morning",
		Priority:    "alta",
		Creator:     "user-1",
	}
}

func TestCreateTicket_NormalizesAndRegisters(t *testing.T) {
	f := newIntakeFixture(nil)

	in := validInput()
	in.Title = "  <b>Login</b> broken "
	in.Tags = []string{"Urgent"}
	res, err := f.svc.CreateTicket(context.Background(), in)
	require.NoError(t, err)

	tk := res.Ticket
	assert.Equal(t, "dev-1741003200000", tk.ID)
	assert.Equal(t, "Login broken", tk.Title)
	assert.Equal(t, domain.PriorityP1, tk.PriorityKey)
	assert.Equal(t, t0.Add(48*time.Hour), tk.SLADeadline)
	assert.True(t, tk.HasTag(domain.TagUrgent))
	assert.Empty(t, res.Duplicates)
	assert.True(t, f.reg.Exists(tk.ID))
	assert.Len(t, f.rec.OfType(events.EventTicketCreated), 1)
}

func TestCreateTicket_BumpsCollidingID(t *testing.T) {
	f := newIntakeFixture(nil)

	in := validInput()
	first, err := f.svc.CreateTicket(context.Background(), in)
	require.NoError(t, err)
	in.Title = "Checkout page slow"
	second, err := f.svc.CreateTicket(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "dev-1741003200000", first.Ticket.ID)
	assert.Equal(t, "dev-1741003200001", second.Ticket.ID)
	assert.Equal(t, t0, second.Ticket.CreatedAt)
}

func TestCreateTicket_ReportsDuplicates(t *testing.T) {
	f := newIntakeFixture(nil)

	first, err := f.svc.CreateTicket(context.Background(), validInput())
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	in := validInput()
	in.Title = "login broken please help"
	in.Creator = "user-2"
	second, err := f.svc.CreateTicket(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{first.Ticket.ID}, second.Duplicates)
	found := f.rec.OfType(events.EventDuplicateFound)
	require.Len(t, found, 1)
	assert.Equal(t, second.Ticket.ID, found[0].TicketID)
	payload, ok := found[0].Payload.(events.DuplicateFoundPayload)
	require.True(t, ok)
	assert.Equal(t, []string{first.Ticket.ID}, payload.Candidates)

	dups, err := f.svc.FindDuplicates(first.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{second.Ticket.ID}, dups)
}

func TestCreateTicket_Rejections(t *testing.T) {
	cases := map[string]func(*TicketCreateInput){
		"unknown priority": func(in *TicketCreateInput) { in.Priority = "urgentissimo" },
		"blank title":      func(in *TicketCreateInput) { in.Title = "<p></p>" },
		"short title":      func(in *TicketCreateInput) { in.Title = "ab" },
		"short body":       func(in *TicketCreateInput) { in.Description = "too short" },
		"unknown team":     func(in *TicketCreateInput) { in.Team = "finance" },
		"foreign type":     func(in *TicketCreateInput) { in.Type = "evento" },
		"unknown tag":      func(in *TicketCreateInput) { in.Tags = []string{"shiny"} },
		"missing creator":  func(in *TicketCreateInput) { in.Creator = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newIntakeFixture(nil)
			in := validInput()
			mutate(&in)
			res, err := f.svc.CreateTicket(context.Background(), in)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, apperrors.ErrPolicyViolation), "got %v", err)
			assert.Zero(t, f.reg.Len())
		})
	}
}

func TestCreateTicket_RateLimited(t *testing.T) {
	clk := clock.NewFake(t0)
	f := newIntakeFixture(NewMemoryRateLimiter(3, time.Minute, clk))

	for i := 0; i < 3; i++ {
		in := validInput()
		in.Title = []string{"First issue", "Second issue", "Third issue"}[i]
		_, err := f.svc.CreateTicket(context.Background(), in)
		require.NoError(t, err)
	}
	_, err := f.svc.CreateTicket(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRateLimited))
	assert.Equal(t, 3, f.reg.Len())
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

func TestCreateTicket_LimiterFailureDoesNotBlockIntake(t *testing.T) {
	f := newIntakeFixture(failingLimiter{})
	_, err := f.svc.CreateTicket(context.Background(), validInput())
	require.NoError(t, err)
}

func TestSLAStatus(t *testing.T) {
	f := newIntakeFixture(nil)
	res, err := f.svc.CreateTicket(context.Background(), validInput())
	require.NoError(t, err)

	f.clock.Advance(36 * time.Hour)
	st, err := f.svc.SLAStatus(res.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, st.Remaining)
	assert.InDelta(t, 75.0, st.PercentElapsed, 0.001)
	assert.Equal(t, sla.SeverityWarning, st.Severity)

	_, err = f.svc.SLAStatus("dev-0")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

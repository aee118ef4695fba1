package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/monitor"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/repository"
)

func TestEngineJobs_SweepOnStartAndFlushOnStop(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	rec := &events.Recorder{}
	repo := repository.NewMemoryTicketRepository()
	reg := registry.New(registry.Options{Repository: repo, Publisher: rec, Clock: clk})

	tk, err := domain.NewTicket(domain.NewTicketParams{
		Team:        domain.TeamDev,
		Type:        "bug",
		Title:       "Deploy pipeline stuck",
		Description: "Nothing has shipped since Friday",
		Creator:     "user-1",
		PriorityKey: domain.PriorityP0,
		CreatedAt:   clk.Now(),
	})
	require.NoError(t, err)
	_, err = reg.Add(context.Background(), tk)
	require.NoError(t, err)
	clk.Advance(25 * time.Hour)

	autoClose, err := monitor.NewAutoCloseMonitor(monitor.AutoCloseOptions{Registry: reg, Publisher: rec})
	require.NoError(t, err)

	s := NewScheduler(nil)
	require.NoError(t, RegisterEngineJobs(s, EngineJobs{
		SLA:       monitor.NewSLAMonitor(monitor.SLAMonitorOptions{Registry: reg, Publisher: rec}),
		AutoClose: autoClose,
		Registry:  reg,
	}))
	s.Start()

	assert.Eventually(t, func() bool {
		return len(rec.OfType(events.EventSLABreached)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Trigger(JobAutoClose))
	require.NoError(t, s.Trigger(JobFlush))
	require.NoError(t, s.Stop(context.Background()))

	stored, ok := repo.Get(tk.ID)
	require.True(t, ok)
	assert.True(t, stored.Ticket.SLABreached)
	assert.Len(t, rec.OfType(events.EventSLABreached), 1)
}

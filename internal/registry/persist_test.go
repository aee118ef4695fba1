package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepository fails every write while down is set.
type flakyRepository struct {
	*repository.MemoryTicketRepository
	mu      sync.Mutex
	down    bool
	upserts int
}

func (f *flakyRepository) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *flakyRepository) Upsert(ctx context.Context, rec domain.TicketRecord) error {
	f.mu.Lock()
	f.upserts++
	down := f.down
	f.mu.Unlock()
	if down {
		return errors.New("connection refused")
	}
	return f.MemoryTicketRepository.Upsert(ctx, rec)
}

func (f *flakyRepository) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return false, errors.New("connection refused")
	}
	return f.MemoryTicketRepository.Delete(ctx, id)
}

func newFlakyRegistry(t *testing.T) (*Registry, *flakyRepository, *clock.Fake) {
	t.Helper()
	repo := &flakyRepository{MemoryTicketRepository: repository.NewMemoryTicketRepository()}
	clk := clock.NewFake(t0)
	reg := New(Options{
		Repository:   repo,
		Clock:        clk,
		WriteRetries: 2,
		WriteBackoff: time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	return reg, repo, clk
}

func TestPersistenceFailure_InMemoryStateWins(t *testing.T) {
	reg, repo, _ := newFlakyRegistry(t)
	ctx := context.Background()

	tk, err := domain.NewTicket(domain.NewTicketParams{
		Team: domain.TeamDev, Type: "bug", Title: "Login broken",
		Description: "Nobody can sign in today", Creator: "user-1",
		PriorityKey: domain.PriorityP1, CreatedAt: t0,
	})
	require.NoError(t, err)
	_, err = reg.Add(ctx, tk)
	require.NoError(t, err)

	repo.setDown(true)
	got, err := reg.Assign(ctx, tk.ID, "agent-1")
	require.NoError(t, err, "write-through failures are not surfaced")
	assert.Equal(t, domain.StatusProgress, got.Status)
	assert.Equal(t, 1, reg.Dirty())
	assert.Equal(t, 1+3, repo.upserts, "initial write plus two retries")

	stored, _ := repo.Get(tk.ID)
	assert.Equal(t, domain.StatusOpen, stored.Ticket.Status, "mirror is stale until flushed")

	require.Error(t, reg.Flush(ctx))

	repo.setDown(false)
	require.NoError(t, reg.Flush(ctx))
	assert.Equal(t, 0, reg.Dirty())
	stored, _ = repo.Get(tk.ID)
	assert.Equal(t, domain.StatusProgress, stored.Ticket.Status)
}

func TestPersistenceFailure_CancelledCallerSkipsBackoff(t *testing.T) {
	repo := &flakyRepository{MemoryTicketRepository: repository.NewMemoryTicketRepository()}
	reg := New(Options{
		Repository:   repo,
		Clock:        clock.NewFake(t0),
		WriteRetries: 3,
		WriteBackoff: time.Hour,
		WriteTimeout: 50 * time.Millisecond,
	})

	tk, err := domain.NewTicket(domain.NewTicketParams{
		Team: domain.TeamDev, Type: "bug", Title: "Login broken",
		Description: "Nobody can sign in today", Creator: "user-1",
		PriorityKey: domain.PriorityP1, CreatedAt: t0,
	})
	require.NoError(t, err)
	_, err = reg.Add(context.Background(), tk)
	require.NoError(t, err)

	repo.setDown(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := reg.AddTag(ctx, tk.ID, domain.TagUrgent)
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("write-through kept backing off after cancellation")
	}

	assert.Equal(t, 1+1, repo.upserts, "add plus a single attempt")
	assert.Equal(t, 1, reg.Dirty())

	repo.setDown(false)
	require.NoError(t, reg.Flush(context.Background()))
	stored, ok := repo.Get(tk.ID)
	require.True(t, ok)
	assert.True(t, stored.Ticket.HasTag(domain.TagUrgent))
}

func TestPersistenceFailure_NextMutationResyncs(t *testing.T) {
	reg, repo, _ := newFlakyRegistry(t)
	ctx := context.Background()

	tk, err := domain.NewTicket(domain.NewTicketParams{
		Team: domain.TeamDev, Type: "bug", Title: "Login broken",
		Description: "Nobody can sign in today", Creator: "user-1",
		PriorityKey: domain.PriorityP1, CreatedAt: t0,
	})
	require.NoError(t, err)

	repo.setDown(true)
	_, err = reg.Add(ctx, tk)
	require.NoError(t, err)
	_, ok := repo.Get(tk.ID)
	assert.False(t, ok)

	repo.setDown(false)
	_, err = reg.AddTag(ctx, tk.ID, domain.TagUrgent)
	require.NoError(t, err)

	stored, ok := repo.Get(tk.ID)
	require.True(t, ok)
	assert.True(t, stored.Ticket.HasTag(domain.TagUrgent))
	assert.Equal(t, 0, reg.Dirty())
}

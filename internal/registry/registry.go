package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/sla"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// Options configures a Registry.
type Options struct {
	Repository   repository.TicketRepository
	Publisher    events.Publisher
	Clock        clock.Clock
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	WriteTimeout time.Duration
	WriteRetries int
	WriteBackoff time.Duration
}

// Registry is the authoritative in-memory store of tickets. Every mutation
// holds the ticket's own lock for its full duration, write-through included,
// so changes to one ticket are linearizable.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	pendingMu      sync.Mutex
	pendingDeletes map[string]struct{}

	repo    repository.TicketRepository
	emitter events.Emitter
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics

	writeTimeout time.Duration
	writeRetries int
	writeBackoff time.Duration
}

type entry struct {
	mu        sync.Mutex
	ticket    *domain.Ticket
	autoClose *domain.AutoCloseTracking
	dirty     bool
	removed   bool
}

func (e *entry) record() domain.TicketRecord {
	return domain.TicketRecord{Ticket: *e.ticket.Clone(), AutoClose: e.autoClose.Clone()}
}

// New builds an empty registry.
func New(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	if opts.WriteRetries < 0 {
		opts.WriteRetries = 0
	}
	if opts.WriteBackoff <= 0 {
		opts.WriteBackoff = 100 * time.Millisecond
	}
	return &Registry{
		entries:        make(map[string]*entry),
		pendingDeletes: make(map[string]struct{}),
		repo:           opts.Repository,
		emitter:        events.Emitter{Publisher: opts.Publisher, Logger: opts.Logger, Counter: opts.Metrics},
		clock:          opts.Clock,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		writeTimeout:   opts.WriteTimeout,
		writeRetries:   opts.WriteRetries,
		writeBackoff:   opts.WriteBackoff,
	}
}

// Now returns the registry's notion of the current time.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}

// Load hydrates the registry from persistence. Existing in-memory entries win.
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.repo == nil {
		return 0, nil
	}
	records, err := r.repo.Find(ctx, repository.TicketFilter{})
	if err != nil {
		return 0, apperrors.NewPersistenceFailure("", fmt.Errorf("load tickets: %w", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	loaded := 0
	for i := range records {
		rec := records[i]
		if rec.AutoClose != nil && rec.AutoClose.ClosedAt != nil {
			r.queueDelete(rec.Ticket.ID)
			continue
		}
		if _, exists := r.entries[rec.Ticket.ID]; exists {
			continue
		}
		t := rec.Ticket
		r.entries[t.ID] = &entry{ticket: &t, autoClose: rec.AutoClose}
		loaded++
	}
	r.logger.Info("registry loaded", zap.Int("tickets", loaded))
	return loaded, nil
}

// Add registers a newly created ticket.
func (r *Registry) Add(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	if t == nil || t.ID == "" {
		return nil, apperrors.NewPolicyViolation("ticket id required", nil)
	}
	e := &entry{ticket: t.Clone()}

	r.mu.Lock()
	if _, exists := r.entries[t.ID]; exists {
		r.mu.Unlock()
		return nil, apperrors.NewConflict("ticket id already registered", map[string]any{"ticket_id": t.ID})
	}
	e.mu.Lock()
	r.entries[t.ID] = e
	r.mu.Unlock()

	r.persist(ctx, e, "create")
	snapshot := e.ticket.Clone()
	e.mu.Unlock()

	r.emitter.Emit(ctx, events.New(events.EventTicketCreated, snapshot,
		events.Actor{Kind: events.ActorUser, ID: snapshot.Creator}, snapshot.CreatedAt,
		events.TicketCreatedPayload{
			Type:        snapshot.Type,
			Title:       snapshot.Title,
			PriorityKey: snapshot.PriorityKey,
			Creator:     snapshot.Creator,
			SLADeadline: snapshot.SLADeadline,
		}))
	return snapshot, nil
}

// Assign moves an open ticket into progress under assignee.
func (r *Registry) Assign(ctx context.Context, id, assignee string) (*domain.Ticket, error) {
	t, _, err := r.mutate(ctx, id, "assign", func(e *entry, now time.Time) (bool, error) {
		return true, e.ticket.Assign(assignee, now)
	})
	if err != nil {
		return nil, err
	}
	r.emitter.Emit(ctx, events.New(events.EventTicketAssigned, t,
		events.Actor{Kind: events.ActorStaff, ID: assignee}, t.UpdatedAt,
		events.TicketAssignedPayload{Assignee: assignee}))
	return t, nil
}

// Resolve resolves a ticket in progress and starts auto-close tracking.
func (r *Registry) Resolve(ctx context.Context, id, actor string) (*domain.Ticket, error) {
	t, _, err := r.mutate(ctx, id, "resolve", func(e *entry, now time.Time) (bool, error) {
		if err := e.ticket.Resolve(now); err != nil {
			return false, err
		}
		e.autoClose = &domain.AutoCloseTracking{ResolvedAt: now}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	r.emitter.Emit(ctx, events.New(events.EventTicketResolved, t,
		events.Actor{Kind: events.ActorStaff, ID: actor}, t.UpdatedAt,
		events.TicketResolvedPayload{Reason: events.ResolutionManual}))
	return t, nil
}

// Reopen sends a ticket back to open and cancels auto-close tracking.
func (r *Registry) Reopen(ctx context.Context, id, actor string) (*domain.Ticket, error) {
	var from domain.TicketStatus
	t, _, err := r.mutate(ctx, id, "reopen", func(e *entry, now time.Time) (bool, error) {
		from = e.ticket.Status
		if err := e.ticket.Reopen(now); err != nil {
			return false, err
		}
		e.autoClose = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	r.emitter.Emit(ctx, events.New(events.EventTicketReopened, t,
		events.Actor{Kind: events.ActorStaff, ID: actor}, t.UpdatedAt,
		events.TicketReopenedPayload{From: from, SLABreached: t.SLABreached}))
	return t, nil
}

// Transition applies a requested status change on behalf of actor.
func (r *Registry) Transition(ctx context.Context, id string, to domain.TicketStatus, actor string) (*domain.Ticket, error) {
	switch to {
	case domain.StatusProgress:
		return r.Assign(ctx, id, actor)
	case domain.StatusResolved:
		return r.Resolve(ctx, id, actor)
	case domain.StatusOpen:
		return r.Reopen(ctx, id, actor)
	}
	current, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return nil, apperrors.NewInvalidTransition(id, current.Status, to)
}

// AddTag adds tag, reporting whether it was newly added.
func (r *Registry) AddTag(ctx context.Context, id string, tag domain.Tag) (bool, error) {
	_, changed, err := r.mutate(ctx, id, "add_tag", func(e *entry, now time.Time) (bool, error) {
		added, err := e.ticket.AddTag(tag)
		if added {
			e.ticket.UpdatedAt = now
		}
		return added, err
	})
	return changed, err
}

// RemoveTag removes tag, reporting whether it was present.
func (r *Registry) RemoveTag(ctx context.Context, id string, tag domain.Tag) (bool, error) {
	_, changed, err := r.mutate(ctx, id, "remove_tag", func(e *entry, now time.Time) (bool, error) {
		removed, err := e.ticket.RemoveTag(tag)
		if removed {
			e.ticket.UpdatedAt = now
		}
		return removed, err
	})
	return changed, err
}

// PauseSLA stops the ticket's SLA clock. It reports false if already paused.
func (r *Registry) PauseSLA(ctx context.Context, id string) (bool, error) {
	_, changed, err := r.mutate(ctx, id, "pause_sla", func(e *entry, now time.Time) (bool, error) {
		return sla.Pause(e.ticket, now), nil
	})
	return changed, err
}

// ResumeSLA restarts the ticket's SLA clock. It reports false if not paused.
func (r *Registry) ResumeSLA(ctx context.Context, id string) (bool, error) {
	_, changed, err := r.mutate(ctx, id, "resume_sla", func(e *entry, now time.Time) (bool, error) {
		return sla.Resume(e.ticket, now), nil
	})
	return changed, err
}

// MarkBreached flags the ticket as breached if it is unresolved, unpaused,
// not yet breached and past its deadline. The check and the flag are set
// under the ticket lock, so only one caller ever gets true.
func (r *Registry) MarkBreached(ctx context.Context, id string) (*domain.Ticket, bool, error) {
	return r.mutate(ctx, id, "mark_breached", func(e *entry, now time.Time) (bool, error) {
		t := e.ticket
		if t.Status == domain.StatusResolved || t.SLAPaused || !sla.Overdue(t, now) {
			return false, nil
		}
		return t.MarkBreached(now), nil
	})
}

// AddNote attaches a staff note.
func (r *Registry) AddNote(ctx context.Context, id, author, content string, private bool) (*domain.Ticket, error) {
	t, _, err := r.mutate(ctx, id, "add_note", func(e *entry, now time.Time) (bool, error) {
		if err := e.ticket.AddNote(author, content, private, now); err != nil {
			return false, err
		}
		return true, nil
	})
	return t, err
}

type mutation func(e *entry, now time.Time) (changed bool, err error)

func (r *Registry) mutate(ctx context.Context, id, op string, fn mutation) (*domain.Ticket, bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false, notFound(id)
	}

	changed, err := fn(e, r.clock.Now())
	if err != nil {
		return nil, false, err
	}
	if changed {
		r.persist(ctx, e, op)
	}
	return e.ticket.Clone(), changed, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

func notFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}

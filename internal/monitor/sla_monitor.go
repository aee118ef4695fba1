package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/sla"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// DefaultSLAInterval is how often the breach sweep runs.
const DefaultSLAInterval = 15 * time.Minute

const slaLockName = "sla-sweep"

// SLAMonitorOptions configures an SLAMonitor.
type SLAMonitorOptions struct {
	Registry  *registry.Registry
	Publisher events.Publisher
	Lock      SweepLock
	LockTTL   time.Duration
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// SLAMonitor detects SLA breaches and escalates each one exactly once.
type SLAMonitor struct {
	registry *registry.Registry
	emitter  events.Emitter
	lock     SweepLock
	lockTTL  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	guard    guard
}

// SweepResult summarizes one breach sweep.
type SweepResult struct {
	Checked  int      `json:"checked"`
	Breached []string `json:"breached"`
	Skipped  bool     `json:"skipped"`
}

// NewSLAMonitor builds a monitor over reg.
func NewSLAMonitor(opts SLAMonitorOptions) *SLAMonitor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &SLAMonitor{
		registry: opts.Registry,
		emitter:  events.Emitter{Publisher: opts.Publisher, Logger: opts.Logger, Counter: opts.Metrics},
		lock:     opts.Lock,
		lockTTL:  opts.LockTTL,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Sweep checks every unresolved ticket once. A sweep that finds another in
// flight returns immediately with Skipped set.
func (m *SLAMonitor) Sweep(ctx context.Context) (SweepResult, error) {
	if !m.guard.enter() {
		m.metrics.RecordSkippedSweep(slaLockName)
		return SweepResult{Skipped: true}, nil
	}
	defer m.guard.leave()

	if m.lock != nil {
		release, ok, err := m.lock.Acquire(ctx, slaLockName, m.lockTTL)
		if err != nil {
			return SweepResult{Skipped: true}, err
		}
		if !ok {
			m.metrics.RecordSkippedSweep(slaLockName)
			return SweepResult{Skipped: true}, nil
		}
		defer release(context.WithoutCancel(ctx))
	}

	start := time.Now()
	res, err := m.sweep(ctx)
	m.metrics.RecordSweep(slaLockName, time.Since(start), err)
	m.logger.Info("sla sweep finished",
		zap.Int("checked", res.Checked),
		zap.Int("breached", len(res.Breached)),
		zap.Error(err))
	return res, err
}

func (m *SLAMonitor) sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := m.registry.Now()
	for _, t := range m.registry.Active() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		if t.SLAPaused || t.SLABreached || !sla.Overdue(t, now) {
			continue
		}

		breached, ok, err := m.registry.MarkBreached(ctx, t.ID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return res, err
		}
		if !ok {
			continue
		}

		res.Breached = append(res.Breached, breached.ID)
		m.metrics.RecordBreach(string(breached.PriorityKey))
		m.logger.Warn("sla breached",
			zap.String("ticket_id", breached.ID),
			zap.String("team", string(breached.Team)),
			zap.String("priority", string(breached.PriorityKey)),
			zap.Time("deadline", breached.SLADeadline))
		m.emitter.Emit(ctx, events.New(events.EventSLABreached, breached, events.SystemActor, *breached.EscalatedAt,
			events.SLABreachedPayload{
				PriorityKey:       breached.PriorityKey,
				EscalationTargets: domain.EscalationTargets(breached.Team, breached.PriorityKey),
				Deadline:          breached.SLADeadline,
				Assignee:          breached.Assignee,
			}))
	}
	return res, nil
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/registry"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// Auto-close defaults.
const (
	DefaultAutoCloseInterval = time.Hour
	DefaultWarningAfter      = 24 * time.Hour
	DefaultCloseAfter        = 48 * time.Hour
)

const autoCloseLockName = "auto-close-sweep"

// AutoCloseOptions configures an AutoCloseMonitor.
type AutoCloseOptions struct {
	Registry     *registry.Registry
	Publisher    events.Publisher
	Lock         SweepLock
	LockTTL      time.Duration
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	WarningAfter time.Duration
	CloseAfter   time.Duration
}

// AutoCloseMonitor warns about and then closes resolved tickets left idle.
type AutoCloseMonitor struct {
	registry     *registry.Registry
	emitter      events.Emitter
	lock         SweepLock
	lockTTL      time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
	warningAfter time.Duration
	closeAfter   time.Duration
	guard        guard
}

// AutoCloseResult summarizes one auto-close sweep.
type AutoCloseResult struct {
	Tracked int      `json:"tracked"`
	Warned  []string `json:"warned"`
	Closed  []string `json:"closed"`
	Skipped bool     `json:"skipped"`
}

// NewAutoCloseMonitor validates thresholds and builds the monitor.
func NewAutoCloseMonitor(opts AutoCloseOptions) (*AutoCloseMonitor, error) {
	if opts.WarningAfter <= 0 {
		opts.WarningAfter = DefaultWarningAfter
	}
	if opts.CloseAfter <= 0 {
		opts.CloseAfter = DefaultCloseAfter
	}
	if opts.CloseAfter < opts.WarningAfter {
		return nil, apperrors.NewPolicyViolation(
			fmt.Sprintf("close threshold %s is shorter than warning threshold %s", opts.CloseAfter, opts.WarningAfter),
			nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &AutoCloseMonitor{
		registry:     opts.Registry,
		emitter:      events.Emitter{Publisher: opts.Publisher, Logger: opts.Logger, Counter: opts.Metrics},
		lock:         opts.Lock,
		lockTTL:      opts.LockTTL,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		warningAfter: opts.WarningAfter,
		closeAfter:   opts.CloseAfter,
	}, nil
}

// Sweep walks the tracked tickets once.
func (m *AutoCloseMonitor) Sweep(ctx context.Context) (AutoCloseResult, error) {
	if !m.guard.enter() {
		m.metrics.RecordSkippedSweep(autoCloseLockName)
		return AutoCloseResult{Skipped: true}, nil
	}
	defer m.guard.leave()

	if m.lock != nil {
		release, ok, err := m.lock.Acquire(ctx, autoCloseLockName, m.lockTTL)
		if err != nil {
			return AutoCloseResult{Skipped: true}, err
		}
		if !ok {
			m.metrics.RecordSkippedSweep(autoCloseLockName)
			return AutoCloseResult{Skipped: true}, nil
		}
		defer release(context.WithoutCancel(ctx))
	}

	start := time.Now()
	res, err := m.sweep(ctx)
	m.metrics.RecordSweep(autoCloseLockName, time.Since(start), err)
	m.logger.Info("auto-close sweep finished",
		zap.Int("tracked", res.Tracked),
		zap.Int("warned", len(res.Warned)),
		zap.Int("closed", len(res.Closed)),
		zap.Error(err))
	return res, err
}

func (m *AutoCloseMonitor) sweep(ctx context.Context) (AutoCloseResult, error) {
	var res AutoCloseResult
	for _, c := range m.registry.AutoCloseCandidates() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Tracked++
		id := c.Ticket.ID

		if c.Tracking.WarnedAt == nil {
			warned, ok, err := m.registry.MarkAutoCloseWarned(ctx, id, m.warningAfter)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					continue
				}
				return res, err
			}
			if ok {
				res.Warned = append(res.Warned, id)
				m.emitter.Emit(ctx, events.New(events.EventAutoCloseWarning, warned.Ticket, events.SystemActor,
					*warned.Tracking.WarnedAt, m.payload(warned)))
			}
		}

		closed, ok, err := m.registry.ExecuteAutoClose(ctx, id, m.closeAfter)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return res, err
		}
		if ok {
			res.Closed = append(res.Closed, id)
			m.logger.Info("ticket auto-closed", zap.String("ticket_id", id), zap.String("team", string(closed.Ticket.Team)))
			m.emitter.Emit(ctx, events.New(events.EventAutoCloseExecuted, closed.Ticket, events.SystemActor,
				*closed.Tracking.ClosedAt, m.payload(closed)))
		}
	}
	return res, nil
}

func (m *AutoCloseMonitor) payload(t *registry.Tracked) events.AutoClosePayload {
	at := m.registry.Now()
	return events.AutoClosePayload{
		ResolvedAt: t.Tracking.ResolvedAt,
		Inactive:   at.Sub(t.Tracking.ResolvedAt),
		CloseAt:    t.Tracking.ResolvedAt.Add(m.closeAfter),
	}
}

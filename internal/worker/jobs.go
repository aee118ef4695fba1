package worker

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-sla/internal/monitor"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/registry"
)

// Engine job names.
const (
	JobSLASweep  = "sla-sweep"
	JobAutoClose = "auto-close"
	JobFlush     = "flush"
)

// EngineJobs describes the periodic work of the SLA engine.
type EngineJobs struct {
	SLA               *monitor.SLAMonitor
	AutoClose         *monitor.AutoCloseMonitor
	Registry          *registry.Registry
	Metrics           *observability.Metrics
	SLAInterval       time.Duration
	AutoCloseInterval time.Duration
	FlushInterval     time.Duration
}

// RegisterEngineJobs adds the breach sweep, the auto-close sweep and the
// persistence flush to s, and flushes the registry once more on Stop.
func RegisterEngineJobs(s *Scheduler, j EngineJobs) error {
	if j.SLAInterval <= 0 {
		j.SLAInterval = monitor.DefaultSLAInterval
	}
	if j.AutoCloseInterval <= 0 {
		j.AutoCloseInterval = monitor.DefaultAutoCloseInterval
	}
	if j.FlushInterval <= 0 {
		j.FlushInterval = time.Minute
	}

	if j.SLA != nil {
		if err := s.Register(Job{
			Name:       JobSLASweep,
			Interval:   j.SLAInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := j.SLA.Sweep(ctx)
				return err
			},
		}); err != nil {
			return err
		}
	}
	if j.AutoClose != nil {
		if err := s.Register(Job{
			Name:     JobAutoClose,
			Interval: j.AutoCloseInterval,
			Run: func(ctx context.Context) error {
				_, err := j.AutoClose.Sweep(ctx)
				return err
			},
		}); err != nil {
			return err
		}
	}
	if j.Registry != nil {
		flush := func(ctx context.Context) error {
			j.Metrics.SetTickets(j.Registry.CountByStatus())
			return j.Registry.Flush(ctx)
		}
		if err := s.Register(Job{Name: JobFlush, Interval: j.FlushInterval, Run: flush}); err != nil {
			return err
		}
		s.OnStop(j.Registry.Flush)
	}
	return nil
}

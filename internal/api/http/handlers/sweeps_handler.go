package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla/internal/monitor"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/worker"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// SweepsHandler exposes manual runs of the background jobs.
type SweepsHandler struct {
	sla       *monitor.SLAMonitor
	autoClose *monitor.AutoCloseMonitor
	registry  *registry.Registry
	scheduler *worker.Scheduler
}

// NewSweepsHandler constructs handler.
func NewSweepsHandler(sla *monitor.SLAMonitor, autoClose *monitor.AutoCloseMonitor, reg *registry.Registry, scheduler *worker.Scheduler) *SweepsHandler {
	return &SweepsHandler{sla: sla, autoClose: autoClose, registry: reg, scheduler: scheduler}
}

// Run POST /sweeps/:job. With ?async=true the pass is queued on the
// scheduler instead of running inside the request.
func (h *SweepsHandler) Run(c *fiber.Ctx) error {
	job := c.Params("job")
	if c.QueryBool("async", false) {
		if h.scheduler == nil {
			return apperrors.NewConflict("scheduler not running", nil)
		}
		if err := h.scheduler.Trigger(job); err != nil {
			if errors.Is(err, worker.ErrUnknownJob) {
				return apperrors.NewNotFound("job", map[string]any{"job": job})
			}
			return apperrors.NewConflict(err.Error(), map[string]any{"job": job})
		}
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"job": job, "queued": true}})
	}

	ctx := c.UserContext()
	switch job {
	case worker.JobSLASweep:
		res, err := h.sla.Sweep(ctx)
		if err != nil {
			return apperrors.MapError(err)
		}
		return c.JSON(fiber.Map{"data": res})
	case worker.JobAutoClose:
		res, err := h.autoClose.Sweep(ctx)
		if err != nil {
			return apperrors.MapError(err)
		}
		return c.JSON(fiber.Map{"data": res})
	case worker.JobFlush:
		if err := h.registry.Flush(ctx); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"dirty": h.registry.Dirty()}})
	default:
		return apperrors.NewNotFound("job", map[string]any{"job": job})
	}
}

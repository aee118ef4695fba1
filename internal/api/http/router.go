package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-sla/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Stats          *handlers.StatsHandler
	Sweeps         *handlers.SweepsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	api.Post("/auth/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	viewer := auth.RequireRole(auth.RoleViewer)
	agent := auth.RequireRole(auth.RoleAgent)
	admin := auth.RequireRole(auth.RoleAdmin)

	tickets := protected.Group("/tickets")
	tickets.Get("", viewer, cfg.Tickets.ListTickets)
	tickets.Post("", agent, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", viewer, cfg.Tickets.GetTicket)
	tickets.Get("/:id/sla", viewer, cfg.Tickets.GetSLA)
	tickets.Get("/:id/auto-close", viewer, cfg.Tickets.GetAutoClose)
	tickets.Get("/:id/duplicates", viewer, cfg.Tickets.Duplicates)
	tickets.Post("/:id/assign", agent, cfg.Tickets.Assign)
	tickets.Post("/:id/resolve", agent, cfg.Tickets.Resolve)
	tickets.Post("/:id/reopen", agent, cfg.Tickets.Reopen)
	tickets.Post("/:id/transition", agent, cfg.Tickets.Transition)
	tickets.Post("/:id/tags", agent, cfg.Tickets.AddTag)
	tickets.Delete("/:id/tags/:tag", agent, cfg.Tickets.RemoveTag)
	tickets.Post("/:id/sla/pause", agent, cfg.Tickets.PauseSLA)
	tickets.Post("/:id/sla/resume", agent, cfg.Tickets.ResumeSLA)
	tickets.Post("/:id/notes", agent, cfg.Tickets.AddNote)
	tickets.Post("/:id/merge", agent, cfg.Tickets.Merge)

	stats := protected.Group("/stats", viewer)
	stats.Get("/teams", cfg.Stats.Teams)
	stats.Get("/teams/:team", cfg.Stats.Team)
	stats.Get("/status", cfg.Stats.Status)
	stats.Get("/attention", cfg.Stats.Attention)

	protected.Post("/sweeps/:job", admin, cfg.Sweeps.Run)
}

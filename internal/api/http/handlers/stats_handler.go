package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla/internal/api/dto"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/service"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// StatsHandler serves aggregate views of the registry.
type StatsHandler struct {
	registry         *registry.Registry
	service          *service.TicketService
	attentionPercent float64
}

// NewStatsHandler constructs handler. attentionPercent is the default
// remaining-SLA threshold of the attention view.
func NewStatsHandler(reg *registry.Registry, ticketService *service.TicketService, attentionPercent float64) *StatsHandler {
	return &StatsHandler{registry: reg, service: ticketService, attentionPercent: attentionPercent}
}

// Teams GET /stats/teams.
func (h *StatsHandler) Teams(c *fiber.Ctx) error {
	teams := domain.Teams()
	out := make([]registry.TeamStats, 0, len(teams))
	for _, team := range teams {
		out = append(out, h.registry.TeamStatistics(team))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Team GET /stats/teams/:team.
func (h *StatsHandler) Team(c *fiber.Ctx) error {
	team := domain.Team(c.Params("team"))
	if !team.Valid() {
		return apperrors.NewNotFound("team", map[string]any{"team": team})
	}
	return c.JSON(fiber.Map{"data": h.registry.TeamStatistics(team)})
}

// Status GET /stats/status.
func (h *StatsHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.registry.CountByStatus()})
}

// Attention GET /stats/attention?percent=20.
func (h *StatsHandler) Attention(c *fiber.Ctx) error {
	pct := h.attentionPercent
	if v := c.Query("percent"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			return apperrors.NewValidationError("percent must be between 0 and 100", nil)
		}
		pct = parsed
	}
	tickets := h.registry.SLAAttention(pct)
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.TicketResponse{Ticket: t, SLA: h.service.StatusFor(t)})
	}
	return c.JSON(fiber.Map{"data": items})
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla/internal/api/dto"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/service"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	registry *registry.Registry
	service  *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(reg *registry.Registry, ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{registry: reg, service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Team:        req.Team,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Creator:     req.Creator,
	})
	if err != nil {
		return err
	}
	dups := res.Duplicates
	if dups == nil {
		dups = []string{}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		Ticket:     h.ticketResponse(res.Ticket),
		Duplicates: dups,
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponses(h.registry.Search(filter))})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	t, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(t)})
}

// GetSLA GET /tickets/:id/sla.
func (h *TicketsHandler) GetSLA(c *fiber.Ctx) error {
	st, err := h.service.SLAStatus(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": st})
}

// GetAutoClose GET /tickets/:id/auto-close.
func (h *TicketsHandler) GetAutoClose(c *fiber.Ctx) error {
	id := c.Params("id")
	tracking, err := h.registry.Tracking(id)
	if err != nil {
		return err
	}
	resp := dto.AutoCloseResponse{TicketID: id}
	if tracking != nil {
		resp.Tracked = true
		resolvedAt := tracking.ResolvedAt
		resp.ResolvedAt = &resolvedAt
		resp.WarnedAt = tracking.WarnedAt
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	assignee := strings.TrimSpace(req.Assignee)
	if assignee == "" {
		assignee = principal.Name
	}
	t, err := h.registry.Assign(c.UserContext(), c.Params("id"), assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(t)})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	t, err := h.registry.Resolve(c.UserContext(), c.Params("id"), principal.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(t)})
}

// Reopen POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	t, err := h.registry.Reopen(c.UserContext(), c.Params("id"), principal.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(t)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !req.Status.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}
	t, err := h.registry.Transition(c.UserContext(), c.Params("id"), req.Status, principal.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(t)})
}

// AddTag POST /tickets/:id/tags.
func (h *TicketsHandler) AddTag(c *fiber.Ctx) error {
	var req dto.TagRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	id := c.Params("id")
	changed, err := h.registry.AddTag(c.UserContext(), id, req.Tag)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChangedResponse{TicketID: id, Changed: changed}})
}

// RemoveTag DELETE /tickets/:id/tags/:tag.
func (h *TicketsHandler) RemoveTag(c *fiber.Ctx) error {
	id := c.Params("id")
	changed, err := h.registry.RemoveTag(c.UserContext(), id, domain.Tag(c.Params("tag")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChangedResponse{TicketID: id, Changed: changed}})
}

// PauseSLA POST /tickets/:id/sla/pause.
func (h *TicketsHandler) PauseSLA(c *fiber.Ctx) error {
	id := c.Params("id")
	changed, err := h.registry.PauseSLA(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChangedResponse{TicketID: id, Changed: changed}})
}

// ResumeSLA POST /tickets/:id/sla/resume.
func (h *TicketsHandler) ResumeSLA(c *fiber.Ctx) error {
	id := c.Params("id")
	changed, err := h.registry.ResumeSLA(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChangedResponse{TicketID: id, Changed: changed}})
}

// AddNote POST /tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	t, err := h.registry.AddNote(c.UserContext(), c.Params("id"), principal.Name, req.Content, req.Private)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(t)})
}

// Merge POST /tickets/:id/merge.
func (h *TicketsHandler) Merge(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.DuplicateID) == "" {
		return apperrors.NewValidationError("duplicate_id required", nil)
	}
	res, err := h.registry.Merge(c.UserContext(), c.Params("id"), req.DuplicateID, principal.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MergeResponse{
		Primary:   h.ticketResponse(res.Primary),
		Duplicate: h.ticketResponse(res.Duplicate),
	}})
}

// Duplicates GET /tickets/:id/duplicates.
func (h *TicketsHandler) Duplicates(c *fiber.Ctx) error {
	ids, err := h.service.FindDuplicates(c.Params("id"))
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(fiber.Map{"data": ids})
}

func (h *TicketsHandler) ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{Ticket: t, SLA: h.service.StatusFor(t)}
}

func (h *TicketsHandler) ticketResponses(tickets []*domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, h.ticketResponse(t))
	}
	return items
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("operator required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) (registry.Filter, error) {
	var f registry.Filter
	if v := c.Query("team"); v != "" {
		team := domain.Team(v)
		f.Team = &team
	}
	if v := c.Query("status"); v != "" {
		status := domain.TicketStatus(v)
		if !status.Valid() {
			return f, apperrors.NewValidationError("unknown status", map[string]any{"status": v})
		}
		f.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		key, ok := domain.NormalizePriority(v)
		if !ok {
			return f, apperrors.NewValidationError("unknown priority", map[string]any{"priority": v})
		}
		f.Priority = &key
	}
	if v := c.Query("creator"); v != "" {
		f.Creator = &v
	}
	if v := c.Query("assignee"); v != "" {
		f.Assignee = &v
	}
	if v := c.Query("tags"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if tag := strings.TrimSpace(part); tag != "" {
				f.Tags = append(f.Tags, domain.Tag(tag))
			}
		}
	}
	if t := parseTime(c.Query("created_after")); t != nil {
		f.CreatedAfter = t
	}
	if t := parseTime(c.Query("created_before")); t != nil {
		f.CreatedBefore = t
	}
	if v := c.Query("breached"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperrors.NewValidationError("breached must be a boolean", nil)
		}
		f.SLABreached = &b
	}
	f.ActiveOnly = c.QueryBool("active", false)
	f.Limit = parseInt(c.Query("limit"), registry.DefaultLimit)
	return f, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

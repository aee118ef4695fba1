package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/duplicate"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/sla"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// maxIDBumps bounds the search for a free ticket id within one intake.
const maxIDBumps = 1000

// TicketService coordinates ticket intake and the read models built on top of
// the registry.
type TicketService struct {
	registry  *registry.Registry
	detector  *duplicate.Detector
	limiter   RateLimiter
	sanitizer *Sanitizer
	emitter   events.Emitter
	clock     clock.Clock
	calendar  sla.Calendar
	logger    *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Registry  *registry.Registry
	Limiter   RateLimiter
	Publisher events.Publisher
	Clock     clock.Clock
	Calendar  sla.Calendar
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// TicketCreateInput is the raw intake payload.
type TicketCreateInput struct {
	Team        string
	Type        string
	Title       string
	Description string
	Priority    string
	Tags        []string
	Creator     string
}

// CreateResult is the outcome of a successful intake.
type CreateResult struct {
	Ticket     *domain.Ticket
	Duplicates []string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		registry:  deps.Registry,
		detector:  duplicate.NewDetector(deps.Registry),
		limiter:   deps.Limiter,
		sanitizer: NewSanitizer(),
		emitter:   events.Emitter{Publisher: deps.Publisher, Logger: deps.Logger, Counter: deps.Metrics},
		clock:     deps.Clock,
		calendar:  deps.Calendar,
		logger:    deps.Logger,
	}
}

// CreateTicket validates and registers a new ticket, then reports any likely
// duplicates among the team's active tickets.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*CreateResult, error) {
	creator := strings.TrimSpace(input.Creator)
	if creator == "" {
		return nil, apperrors.NewPolicyViolation("creator required", nil)
	}
	if err := s.checkRateLimit(ctx, creator); err != nil {
		return nil, err
	}

	title := s.sanitizer.Clean(input.Title)
	description := s.sanitizer.Clean(input.Description)
	rawPriority := s.sanitizer.Clean(input.Priority)
	if title == "" || description == "" || rawPriority == "" {
		s.logger.Warn("intake rejected: empty input after sanitization", zap.String("creator", creator))
		return nil, apperrors.NewPolicyViolation("title, description and priority are required", nil)
	}

	priority, ok := domain.NormalizePriority(rawPriority)
	if !ok {
		return nil, apperrors.NewPolicyViolation("unknown priority",
			map[string]any{"priority": rawPriority, "accepted": domain.Priorities()})
	}

	tags := make([]domain.Tag, 0, len(input.Tags))
	for _, raw := range input.Tags {
		tags = append(tags, domain.Tag(strings.ToLower(strings.TrimSpace(raw))))
	}

	now := s.clock.Now()
	team := domain.Team(strings.ToLower(strings.TrimSpace(input.Team)))
	params := domain.NewTicketParams{
		Team:        team,
		Type:        strings.ToLower(strings.TrimSpace(input.Type)),
		Title:       title,
		Description: description,
		Creator:     creator,
		PriorityKey: priority,
		Tags:        tags,
		CreatedAt:   now,
	}

	created, err := s.register(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Ticket: created}
	if dups := s.detector.Find(created.Title, created.Team, created.ID); len(dups) > 0 {
		result.Duplicates = dups
		s.emitter.Emit(ctx, events.New(events.EventDuplicateFound, created,
			events.Actor{Kind: events.ActorUser, ID: creator}, now,
			events.DuplicateFoundPayload{Title: created.Title, Candidates: dups}))
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", created.ID),
		zap.String("team", string(created.Team)),
		zap.String("priority_key", string(created.PriorityKey)),
		zap.Int("duplicates", len(result.Duplicates)))
	return result, nil
}

// register builds the ticket and adds it to the registry. On an id collision
// the millisecond component of the id is bumped until a free id is found.
func (s *TicketService) register(ctx context.Context, params domain.NewTicketParams) (*domain.Ticket, error) {
	millis := params.CreatedAt.UnixMilli()
	for bump := int64(0); bump < maxIDBumps; bump++ {
		params.ID = fmt.Sprintf("%s-%d", params.Team, millis+bump)
		if s.registry.Exists(params.ID) {
			continue
		}
		ticket, err := domain.NewTicket(params)
		if err != nil {
			return nil, err
		}
		created, err := s.registry.Add(ctx, ticket)
		if apperrors.IsKind(err, apperrors.ErrConflict) {
			continue
		}
		return created, err
	}
	return nil, apperrors.NewConflict("no free ticket id", map[string]any{"team": params.Team})
}

func (s *TicketService) checkRateLimit(ctx context.Context, creator string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, creator)
	if err != nil {
		// intake stays available when the limiter backend is down
		s.logger.Warn("rate limiter unavailable", zap.String("creator", creator), zap.Error(err))
		return nil
	}
	if !allowed {
		secs := int((retryAfter + time.Second - 1) / time.Second)
		s.logger.Warn("intake rate limited", zap.String("creator", creator), zap.Int("retry_after_seconds", secs))
		return apperrors.NewRateLimited(secs)
	}
	return nil
}

// FindDuplicates lists likely duplicates of an existing ticket.
func (s *TicketService) FindDuplicates(id string) ([]string, error) {
	t, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return s.detector.Find(t.Title, t.Team, t.ID), nil
}

// SLAStatus reports the SLA clock of a ticket.
func (s *TicketService) SLAStatus(id string) (sla.Status, error) {
	t, err := s.registry.Get(id)
	if err != nil {
		return sla.Status{}, err
	}
	return s.StatusFor(t), nil
}

// StatusFor reports the SLA clock of an already loaded ticket.
func (s *TicketService) StatusFor(t *domain.Ticket) sla.Status {
	return sla.StatusOf(t, s.clock.Now(), s.calendar)
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/helpdesk/internal/domain"
	"github.com/gsg-it/helpdesk/internal/events"
	"github.com/gsg-it/helpdesk/internal/repository"
	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

// AssignmentService routes tickets to handling agents. Assignment is
// orthogonal to status: a ticket may be assigned in any state, and
// concurrent assignments are last-write-wins.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps TicketDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Assign routes the ticket to the given agent. Re-assigning to the current
// assignee is a no-op and emits no event.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	if actor == nil || !domain.RoleAllowed(domain.OperationAssignTicket, actor.Role) {
		return nil, apperrors.NewForbidden("not allowed to assign tickets")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"assignee_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if assignee.Role != domain.RoleITSupport && assignee.Role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("assignee must be an IT support agent",
			map[string]any{"assignee_id": assignee.ID, "role": assignee.Role})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if ticket.AssignedToID != nil && *ticket.AssignedToID == assignee.ID {
		return ticket, nil
	}

	previous := ticket.AssignedToID
	if err := s.tickets.UpdateAssignee(ctx, ticket.ID, &assignee.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	ticket.AssignedToID = &assignee.ID

	s.recordAssigneeChange(ctx, actor.ID, ticket.ID, previous, &assignee.ID)
	s.publish(ctx, events.Event{
		Type:      events.EventTicketAssigned,
		Ticket:    events.SnapshotOf(ticket),
		Recipient: assignee.ID,
		ActorID:   actor.ID,
	})

	s.logger.Info("ticket assigned",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("assignee_id", assignee.ID),
		zap.String("actor_id", actor.ID))

	return ticket, nil
}

// SelfAssign lets a support agent pull the ticket onto their own queue.
func (s *AssignmentService) SelfAssign(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	return s.Assign(ctx, actor, ticketID, actor.ID)
}

// Unassign clears the ticket's assignee.
func (s *AssignmentService) Unassign(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil || !domain.RoleAllowed(domain.OperationAssignTicket, actor.Role) {
		return nil, apperrors.NewForbidden("not allowed to assign tickets")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.AssignedToID == nil {
		return ticket, nil
	}

	previous := ticket.AssignedToID
	if err := s.tickets.UpdateAssignee(ctx, ticket.ID, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.AssignedToID = nil

	s.recordAssigneeChange(ctx, actor.ID, ticket.ID, previous, nil)
	return ticket, nil
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, actorID, ticketID string, oldID, newID *string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue:    map[string]any{"assigned_to_id": derefOrNil(oldID)},
		NewValue:    map[string]any{"assigned_to_id": derefOrNil(newID)},
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record history", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func derefOrNil(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

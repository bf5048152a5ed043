package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/helpdesk/internal/domain"
	"github.com/gsg-it/helpdesk/internal/events"
	"github.com/gsg-it/helpdesk/internal/repository"
	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

// TicketService coordinates the ticket lifecycle: creation, the manager
// approval workflow, and the guarded status transitions. Every operation
// takes the acting user explicitly; nothing is read from ambient state.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes the ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	ManagerID   *string
	Priority    *domain.TicketPriority
}

// ApprovalInput describes a manager approval decision.
type ApprovalInput struct {
	Decision domain.ApprovalStatus
	Priority *domain.TicketPriority
	Comment  string
}

// TicketListFilter describes staff listing filters.
type TicketListFilter struct {
	Statuses         []domain.TicketStatus
	ApprovalStatuses []domain.ApprovalStatus
	Categories       []domain.TicketCategory
	Priorities       []domain.TicketPriority
	AssignedToID     *string
	SearchTerm       *string
	Limit            int
	Offset           int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket builds a new ticket honoring the category policy. Tickets in
// approval-required categories start blocked on the named manager; all
// others open immediately.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil || !domain.RoleAllowed(domain.OperationCreateTicket, actor.Role) {
		return nil, apperrors.NewForbidden("not allowed to create tickets")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}

	needsApproval := domain.RequiresApproval(input.Category)
	if needsApproval && input.ManagerID == nil {
		return nil, apperrors.NewValidationError("select a manager: this category requires manager approval",
			map[string]any{"category": input.Category})
	}

	var manager *domain.User
	if input.ManagerID != nil {
		found, err := s.users.GetByID(ctx, *input.ManagerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("manager", map[string]any{"manager_id": *input.ManagerID})
			}
			return nil, apperrors.MapError(err)
		}
		if found.Role != domain.RoleManager && found.Role != domain.RoleAdmin {
			return nil, apperrors.NewValidationError("selected user cannot approve tickets",
				map[string]any{"manager_id": found.ID})
		}
		manager = found
	}

	ticket := &domain.Ticket{
		TicketNumber: generateTicketNumber(),
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Category:     input.Category,
		Priority:     input.Priority,
		RequesterID:  actor.ID,
	}
	if manager != nil {
		ticket.ManagerID = &manager.ID
	}
	if needsApproval {
		ticket.Status = domain.TicketStatusPendingManagerApproval
		ticket.ApprovalStatus = domain.ApprovalStatusPending
	} else {
		ticket.Status = domain.TicketStatusOpen
		ticket.ApprovalStatus = domain.ApprovalStatusNA
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		Ticket:    events.SnapshotOf(ticket),
		Recipient: actor.ID,
		ActorID:   actor.ID,
	})
	if needsApproval && manager != nil {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventManagerApprovalRequested,
			Ticket:    events.SnapshotOf(ticket),
			Recipient: manager.ID,
			ActorID:   actor.ID,
		})
	}

	s.logger.Info("ticket created",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("requester_id", ticket.RequesterID),
		zap.String("status", string(ticket.Status)),
		zap.String("approval_status", string(ticket.ApprovalStatus)))

	return ticket, nil
}

// DecideApproval resolves the manager-approval sub-state. The decision is
// committed at most once; a concurrent second caller gets a conflict.
func (s *TicketService) DecideApproval(ctx context.Context, actor *domain.User, ticketID string, input ApprovalInput) (*domain.Ticket, error) {
	if actor == nil || !domain.RoleAllowed(domain.OperationDecideApproval, actor.Role) {
		return nil, apperrors.NewForbidden("not allowed to decide approvals")
	}
	if input.Decision != domain.ApprovalStatusApproved && input.Decision != domain.ApprovalStatusRejected {
		return nil, apperrors.NewValidationError("decision must be APPROVED or REJECTED",
			map[string]any{"decision": input.Decision})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.ApprovalStatus == domain.ApprovalStatusNA {
		return nil, apperrors.NewValidationError("ticket does not require manager approval",
			map[string]any{"ticket_id": ticket.ID})
	}

	// IT support and admins may override the named manager; a manager may
	// only decide tickets routed to them.
	if actor.Role == domain.RoleManager {
		if ticket.ManagerID == nil || *ticket.ManagerID != actor.ID {
			return nil, apperrors.NewForbidden("only the assigned manager may decide this ticket")
		}
	}

	if input.Decision == domain.ApprovalStatusApproved &&
		domain.RequiresPriorityOnApproval(ticket.Category) && input.Priority == nil {
		return nil, apperrors.NewValidationError("priority required when approving security tickets",
			map[string]any{"category": ticket.Category})
	}

	decision := repository.ApprovalDecision{
		Approval:  input.Decision,
		Priority:  input.Priority,
		DecidedAt: time.Now(),
	}
	if input.Decision == domain.ApprovalStatusApproved {
		open := domain.TicketStatusOpen
		decision.Status = &open
	}

	if err := s.tickets.RecordApprovalDecision(ctx, ticket.ID, decision); err != nil {
		if errors.Is(err, repository.ErrApprovalDecided) {
			return nil, apperrors.NewConflict("approval decision already recorded",
				map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}

	updated, err := s.getTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.appendComment(ctx, actor, updated.ID, input.Comment)
	s.recordHistory(ctx, actor.ID, updated.ID, domain.ChangeTypeApproval,
		map[string]any{"approval_status": domain.ApprovalStatusPending},
		map[string]any{"approval_status": updated.ApprovalStatus, "comment": input.Comment})

	eventType := events.EventManagerApproved
	if input.Decision == domain.ApprovalStatusRejected {
		eventType = events.EventManagerRejected
	}
	s.publishEvent(ctx, events.Event{
		Type:      eventType,
		Ticket:    events.SnapshotOf(updated),
		Recipient: updated.RequesterID,
		ActorID:   actor.ID,
		Comment:   input.Comment,
	})

	s.logger.Info("approval decision recorded",
		zap.String("ticket_number", updated.TicketNumber),
		zap.String("decision", string(input.Decision)),
		zap.String("actor_id", actor.ID))

	return updated, nil
}

// TransitionStatus advances the post-approval lifecycle. IT support moves one
// step at a time; admins may jump ahead. Nobody leaves
// PENDING_MANAGER_APPROVAL through this guard.
func (s *TicketService) TransitionStatus(ctx context.Context, actor *domain.User, ticketID string, target domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if actor == nil || !domain.RoleAllowed(domain.OperationTransitionStatus, actor.Role) {
		return nil, apperrors.NewForbidden("not allowed to change ticket status")
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.Status == domain.TicketStatusPendingManagerApproval {
		return nil, apperrors.NewValidationError("manager approval is pending; the ticket cannot be worked on yet",
			map[string]any{"ticket_id": ticket.ID})
	}

	targetRank, ok := domain.StatusRank(target)
	if !ok {
		return nil, apperrors.NewValidationError("invalid target status", map[string]any{"status": target})
	}
	currentRank, _ := domain.StatusRank(ticket.Status)

	switch actor.Role {
	case domain.RoleAdmin:
		if target == ticket.Status {
			return ticket, nil
		}
		if targetRank < currentRank {
			return nil, apperrors.NewValidationError("status cannot move backwards",
				map[string]any{"from": ticket.Status, "to": target})
		}
	case domain.RoleITSupport:
		next, hasNext := domain.NextStatus(ticket.Status)
		if !hasNext || target != next {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("illegal transition %s -> %s: IT support advances one step at a time", ticket.Status, target),
				map[string]any{"from": ticket.Status, "to": target})
		}
	}

	if err := s.tickets.TransitionStatus(ctx, ticket.ID, ticket.Status, target, time.Now()); err != nil {
		if errors.Is(err, repository.ErrStatusMoved) {
			return nil, apperrors.NewConflict("ticket status changed concurrently",
				map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}

	updated, err := s.getTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.appendComment(ctx, actor, updated.ID, comment)
	s.recordHistory(ctx, actor.ID, updated.ID, domain.ChangeTypeStatus,
		map[string]any{"status": ticket.Status},
		map[string]any{"status": updated.Status, "comment": comment})

	if actor.Role == domain.RoleAdmin {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventAdminStatusChanged,
			Ticket:    events.SnapshotOf(updated),
			Recipient: updated.RequesterID,
			ActorID:   actor.ID,
			Comment:   comment,
		})
	}
	switch updated.Status {
	case domain.TicketStatusResolved:
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketResolved,
			Ticket:    events.SnapshotOf(updated),
			Recipient: updated.RequesterID,
			ActorID:   actor.ID,
			Comment:   comment,
		})
	case domain.TicketStatusClosed:
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketClosed,
			Ticket:    events.SnapshotOf(updated),
			Recipient: updated.RequesterID,
			ActorID:   actor.ID,
			Comment:   comment,
		})
	}

	s.logger.Info("ticket status updated",
		zap.String("ticket_number", updated.TicketNumber),
		zap.String("from", string(ticket.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", actor.ID))

	return updated, nil
}

// CloseOwnTicket lets the original requester close their resolved ticket.
// This is the only status-transition right requesters hold.
func (s *TicketService) CloseOwnTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("only the requester may close their own ticket")
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewValidationError("only resolved tickets can be closed by the requester",
			map[string]any{"status": ticket.Status})
	}

	if err := s.tickets.TransitionStatus(ctx, ticket.ID, domain.TicketStatusResolved, domain.TicketStatusClosed, time.Now()); err != nil {
		if errors.Is(err, repository.ErrStatusMoved) {
			return nil, apperrors.NewConflict("ticket status changed concurrently",
				map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}

	updated, err := s.getTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor.ID, updated.ID, domain.ChangeTypeStatus,
		map[string]any{"status": domain.TicketStatusResolved},
		map[string]any{"status": updated.Status, "comment": "closed by requester"})
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClosed,
		Ticket:    events.SnapshotOf(updated),
		Recipient: updated.RequesterID,
		ActorID:   actor.ID,
	})

	return updated, nil
}

// AddComment appends to the ticket's comment thread.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, body string) (*domain.Comment, error) {
	if actor == nil || !domain.RoleAllowed(domain.OperationCommentTicket, actor.Role) {
		return nil, apperrors.NewForbidden("not allowed to comment")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

// GetTicket fetches a ticket with its comment thread, enforcing visibility.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.Comment, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("actor required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !s.canView(actor, ticket) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, comments, nil
}

// ListOwnTickets returns the requester's tickets.
func (s *TicketService) ListOwnTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: &actor.ID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListTicketsForStaff returns tickets matching staff filters.
func (s *TicketService) ListTicketsForStaff(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor == nil || (actor.Role != domain.RoleITSupport && actor.Role != domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("staff role required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:         filter.Statuses,
		ApprovalStatuses: filter.ApprovalStatuses,
		Categories:       filter.Categories,
		Priorities:       filter.Priorities,
		AssignedToID:     filter.AssignedToID,
		SearchTerm:       filter.SearchTerm,
		Limit:            filter.Limit,
		Offset:           filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListApprovalQueue returns tickets awaiting the manager's decision.
func (s *TicketService) ListApprovalQueue(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if actor == nil || (actor.Role != domain.RoleManager && actor.Role != domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("manager role required")
	}
	filter := repository.TicketFilter{
		ApprovalStatuses: []domain.ApprovalStatus{domain.ApprovalStatusPending},
		Limit:            limit,
		Offset:           offset,
	}
	if actor.Role == domain.RoleManager {
		filter.ManagerID = &actor.ID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListHistory returns the audit trail for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) canView(actor *domain.User, ticket *domain.Ticket) bool {
	if actor.Role == domain.RoleAdmin || actor.Role == domain.RoleITSupport {
		return true
	}
	if ticket.RequesterID == actor.ID {
		return true
	}
	if ticket.ManagerID != nil && *ticket.ManagerID == actor.ID {
		return true
	}
	return false
}

// appendComment stores an optional actor note. The state change has already
// committed, so a failure here is logged rather than surfaced.
func (s *TicketService) appendComment(ctx context.Context, actor *domain.User, ticketID, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	comment := &domain.Comment{TicketID: ticketID, AuthorID: actor.ID, Body: body}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Warn("failed to append comment", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) recordHistory(ctx context.Context, actorID, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record history", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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

func generateTicketNumber() string {
	datePart := time.Now().Format("012006")
	return "HD-" + datePart + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

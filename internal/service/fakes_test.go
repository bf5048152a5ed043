package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gsg-it/helpdesk/internal/domain"
	"github.com/gsg-it/helpdesk/internal/events"
	"github.com/gsg-it/helpdesk/internal/repository"
)

// memTicketRepo mirrors the Postgres repository semantics in memory,
// including the conditional-update behavior of the decision methods.
type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memTicketRepo) GetByTicketNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.tickets {
		if stored.TicketNumber == number {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range r.tickets {
		if filter.RequesterID != nil && stored.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.ManagerID != nil && (stored.ManagerID == nil || *stored.ManagerID != *filter.ManagerID) {
			continue
		}
		if filter.AssignedToID != nil && (stored.AssignedToID == nil || *stored.AssignedToID != *filter.AssignedToID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		if len(filter.ApprovalStatuses) > 0 && !containsApproval(filter.ApprovalStatuses, stored.ApprovalStatus) {
			continue
		}
		if filter.SearchTerm != nil &&
			!strings.Contains(strings.ToLower(stored.Title), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		result = append(result, *stored)
	}
	return result, nil
}

func (r *memTicketRepo) RecordApprovalDecision(_ context.Context, id string, decision repository.ApprovalDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.ApprovalStatus != domain.ApprovalStatusPending {
		return repository.ErrApprovalDecided
	}
	stored.ApprovalStatus = decision.Approval
	if decision.Status != nil {
		stored.Status = *decision.Status
	}
	if decision.Priority != nil {
		stored.Priority = decision.Priority
	}
	at := decision.DecidedAt
	switch decision.Approval {
	case domain.ApprovalStatusApproved:
		if stored.ApprovedAt == nil {
			stored.ApprovedAt = &at
		}
	case domain.ApprovalStatusRejected:
		if stored.RejectedAt == nil {
			stored.RejectedAt = &at
		}
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memTicketRepo) TransitionStatus(_ context.Context, id string, from, to domain.TicketStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != from {
		return repository.ErrStatusMoved
	}
	stored.Status = to
	switch to {
	case domain.TicketStatusInProgress:
		if stored.InProgressAt == nil {
			stored.InProgressAt = &at
		}
	case domain.TicketStatusResolved:
		if stored.ResolvedAt == nil {
			stored.ResolvedAt = &at
		}
	case domain.TicketStatusClosed:
		if stored.ClosedAt == nil {
			stored.ClosedAt = &at
		}
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memTicketRepo) UpdateAssignee(_ context.Context, id string, assigneeID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.AssignedToID = assigneeID
	stored.UpdatedAt = time.Now()
	return nil
}

func containsStatus(haystack []domain.TicketStatus, needle domain.TicketStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsApproval(haystack []domain.ApprovalStatus, needle domain.ApprovalStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.users {
		if stored.Email == email {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, stored := range r.users {
		if stored.Role == role {
			result = append(result, *stored)
		}
	}
	return result, nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	seq      int
	comments map[string][]domain.Comment
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{comments: make(map[string][]domain.Comment)}
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	comment.ID = fmt.Sprintf("comment-%d", r.seq)
	comment.CreatedAt = time.Now()
	r.comments[comment.TicketID] = append(r.comments[comment.TicketID], *comment)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Comment{}, r.comments[ticketID]...), nil
}

type memHistoryRepo struct {
	mu      sync.Mutex
	seq     int
	entries map[string][]domain.TicketHistory
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{entries: make(map[string][]domain.TicketHistory)}
}

func (r *memHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = fmt.Sprintf("history-%d", r.seq)
	entry.CreatedAt = time.Now()
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], *entry)
	return nil
}

func (r *memHistoryRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TicketHistory{}, r.entries[ticketID]...), nil
}

// captureDispatcher records published events in order.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

func (d *captureDispatcher) typesSeen() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		types = append(types, e.Type)
	}
	return types
}

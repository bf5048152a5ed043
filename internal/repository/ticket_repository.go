package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gsg-it/helpdesk/internal/domain"
)

// ErrApprovalDecided signals that the approval compare-and-set lost: another
// caller already recorded a decision for the ticket.
var ErrApprovalDecided = errors.New("approval decision already recorded")

// ErrStatusMoved signals that the status compare-and-set lost: the ticket is
// no longer in the status the caller observed.
var ErrStatusMoved = errors.New("ticket status changed concurrently")

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID      *string
	ManagerID        *string
	AssignedToID     *string
	Statuses         []domain.TicketStatus
	ApprovalStatuses []domain.ApprovalStatus
	Categories       []domain.TicketCategory
	Priorities       []domain.TicketPriority
	SearchTerm       *string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	Limit            int
	Offset           int
}

// ApprovalDecision carries the fields written when an approval is resolved.
// Status is set only for approvals; rejection leaves the ticket where it is.
type ApprovalDecision struct {
	Approval  domain.ApprovalStatus
	Status    *domain.TicketStatus
	Priority  *domain.TicketPriority
	DecidedAt time.Time
}

// TicketRepository encapsulates ticket persistence. The decision methods are
// single read-check-write units: each commits only if the guarded field still
// holds the expected value.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByTicketNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	RecordApprovalDecision(ctx context.Context, id string, decision ApprovalDecision) error
	TransitionStatus(ctx context.Context, id string, from, to domain.TicketStatus, at time.Time) error
	UpdateAssignee(ctx context.Context, id string, assigneeID *string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, title, description, category, priority, status,
               manager_approval_status, requester_id, manager_id, assigned_to_id,
               created_at, updated_at, approved_at, rejected_at, in_progress_at, resolved_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, title, description, category, priority, status,
                             manager_approval_status, requester_id, manager_id, assigned_to_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.ApprovalStatus,
		ticket.RequesterID,
		ticket.ManagerID,
		ticket.AssignedToID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByTicketNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1`
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.ApprovalStatus,
		&ticket.RequesterID,
		&ticket.ManagerID,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ApprovedAt,
		&ticket.RejectedAt,
		&ticket.InProgressAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// RecordApprovalDecision commits the approval sub-state transition only while
// the ticket is still PENDING. The WHERE clause is the atomicity guarantee:
// of two concurrent callers exactly one matches the row.
func (r *ticketRepository) RecordApprovalDecision(ctx context.Context, id string, decision ApprovalDecision) error {
	const query = `
        UPDATE tickets SET
            manager_approval_status=$2,
            status=COALESCE($3, status),
            priority=COALESCE($4, priority),
            approved_at=CASE WHEN $2='APPROVED' THEN COALESCE(approved_at, $5) ELSE approved_at END,
            rejected_at=CASE WHEN $2='REJECTED' THEN COALESCE(rejected_at, $5) ELSE rejected_at END,
            updated_at=NOW()
        WHERE id=$1 AND manager_approval_status='PENDING'`
	cmd, err := r.pool.Exec(ctx, query, id, decision.Approval, decision.Status, decision.Priority, decision.DecidedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrApprovalDecided
	}
	return nil
}

// TransitionStatus moves the ticket from one status to the next, stamping the
// matching timestamp the first time the state is reached.
func (r *ticketRepository) TransitionStatus(ctx context.Context, id string, from, to domain.TicketStatus, at time.Time) error {
	const query = `
        UPDATE tickets SET
            status=$3,
            in_progress_at=CASE WHEN $3='IN_PROGRESS' THEN COALESCE(in_progress_at, $4) ELSE in_progress_at END,
            resolved_at=CASE WHEN $3='RESOLVED' THEN COALESCE(resolved_at, $4) ELSE resolved_at END,
            closed_at=CASE WHEN $3='CLOSED' THEN COALESCE(closed_at, $4) ELSE closed_at END,
            updated_at=NOW()
        WHERE id=$1 AND status=$2`
	cmd, err := r.pool.Exec(ctx, query, id, from, to, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusMoved
	}
	return nil
}

// UpdateAssignee sets the handling agent. Deliberately not a compare-and-set:
// concurrent assignments are last-write-wins.
func (r *ticketRepository) UpdateAssignee(ctx context.Context, id string, assigneeID *string) error {
	const query = `UPDATE tickets SET assigned_to_id=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, assigneeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.ManagerID != nil {
		args = append(args, *filter.ManagerID)
		clauses = append(clauses, fmt.Sprintf("manager_id=$%d", len(args)))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.ApprovalStatuses) > 0 {
		placeholders := make([]string, len(filter.ApprovalStatuses))
		for i, st := range filter.ApprovalStatuses {
			args = append(args, st)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("manager_approval_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketNumber,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.ApprovalStatus,
			&ticket.RequesterID,
			&ticket.ManagerID,
			&ticket.AssignedToID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ApprovedAt,
			&ticket.RejectedAt,
			&ticket.InProgressAt,
			&ticket.ResolvedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

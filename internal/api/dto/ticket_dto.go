package dto

import (
	"time"

	"github.com/gsg-it/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                 `json:"title" validate:"required"`
	Description string                 `json:"description"`
	Category    domain.TicketCategory  `json:"category" validate:"required"`
	ManagerID   *string                `json:"manager_id"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// ApprovalRequest payload for the manager decision.
type ApprovalRequest struct {
	Decision domain.ApprovalStatus  `json:"decision" validate:"required"`
	Priority *domain.TicketPriority `json:"priority"`
	Comment  string                 `json:"comment"`
}

// StatusUpdateRequest payload.
type StatusUpdateRequest struct {
	Status  domain.TicketStatus `json:"status" validate:"required"`
	Comment string              `json:"comment"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body" validate:"required"`
}

// AttachmentRequest records an uploaded file reference.
type AttachmentRequest struct {
	FileName  string `json:"file_name" validate:"required"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                 `json:"id"`
	TicketNumber   string                 `json:"ticket_number"`
	Title          string                 `json:"title"`
	Category       domain.TicketCategory  `json:"category"`
	Priority       *domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus    `json:"status"`
	ApprovalStatus domain.ApprovalStatus  `json:"approval_status"`
	RequesterID    string                 `json:"requester_id"`
	ManagerID      *string                `json:"manager_id"`
	AssignedToID   *string                `json:"assigned_to_id"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string            `json:"description"`
	ApprovedAt   *time.Time        `json:"approved_at"`
	RejectedAt   *time.Time        `json:"rejected_at"`
	InProgressAt *time.Time        `json:"in_progress_at"`
	ResolvedAt   *time.Time        `json:"resolved_at"`
	ClosedAt     *time.Time        `json:"closed_at"`
	Comments     []CommentResponse `json:"comments"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	UploaderID string    `json:"uploader_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID string                  `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TicketView maps a domain ticket to its summary form.
func TicketView(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:             ticket.ID,
		TicketNumber:   ticket.TicketNumber,
		Title:          ticket.Title,
		Category:       ticket.Category,
		Priority:       ticket.Priority,
		Status:         ticket.Status,
		ApprovalStatus: ticket.ApprovalStatus,
		RequesterID:    ticket.RequesterID,
		ManagerID:      ticket.ManagerID,
		AssignedToID:   ticket.AssignedToID,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

// TicketDetailView maps a ticket plus its comment thread.
func TicketDetailView(ticket *domain.Ticket, comments []domain.Comment) TicketDetailResponse {
	commentViews := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		commentViews = append(commentViews, CommentResponse{
			ID:        comment.ID,
			AuthorID:  comment.AuthorID,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
		})
	}
	return TicketDetailResponse{
		TicketSummary: TicketView(ticket),
		Description:   ticket.Description,
		ApprovedAt:    ticket.ApprovedAt,
		RejectedAt:    ticket.RejectedAt,
		InProgressAt:  ticket.InProgressAt,
		ResolvedAt:    ticket.ResolvedAt,
		ClosedAt:      ticket.ClosedAt,
		Comments:      commentViews,
	}
}

// AttachmentView maps an attachment reference.
func AttachmentView(ref *domain.AttachmentReference) AttachmentResponse {
	return AttachmentResponse{
		ID:         ref.ID,
		FileName:   ref.FileName,
		SizeBytes:  ref.SizeBytes,
		UploaderID: ref.UploaderID,
		UploadedAt: ref.UploadedAt,
	}
}

// HistoryViews maps audit entries.
func HistoryViews(entries []domain.TicketHistory) []TicketHistoryResponse {
	views := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		views = append(views, TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return views
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/helpdesk/internal/domain"
	"github.com/gsg-it/helpdesk/internal/repository"
	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

// maxAttachmentSize caps declared attachment sizes at 25 MiB, matching the
// upload limit enforced at the storage gateway.
const maxAttachmentSize = 25 << 20

// AttachmentService manages attachment references. Files themselves live in
// external storage; the portal records name, size, and uploader.
type AttachmentService struct {
	attachments repository.AttachmentRepository
	tickets     repository.TicketRepository
	logger      *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(attachments repository.AttachmentRepository, tickets repository.TicketRepository, logger *zap.Logger) *AttachmentService {
	return &AttachmentService{attachments: attachments, tickets: tickets, logger: logger}
}

// AddReference records an uploaded file against the ticket.
func (s *AttachmentService) AddReference(ctx context.Context, actor *domain.User, ticketID, fileName string, sizeBytes int64) (*domain.AttachmentReference, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apperrors.NewValidationError("file name required", nil)
	}
	if sizeBytes < 0 || sizeBytes > maxAttachmentSize {
		return nil, apperrors.NewValidationError("attachment size out of range",
			map[string]any{"size_bytes": sizeBytes, "max_bytes": maxAttachmentSize})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewValidationError("cannot attach files to a closed ticket",
			map[string]any{"ticket_id": ticket.ID})
	}

	ref := &domain.AttachmentReference{
		TicketID:   ticket.ID,
		FileName:   fileName,
		SizeBytes:  sizeBytes,
		UploaderID: actor.ID,
	}
	if err := s.attachments.Create(ctx, ref); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ref, nil
}

// ListForTicket returns attachment references for the ticket.
func (s *AttachmentService) ListForTicket(ctx context.Context, actor *domain.User, ticketID string) ([]domain.AttachmentReference, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	refs, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return refs, nil
}

// RemoveReference deletes an attachment reference. Only the uploader or an
// admin may remove it.
func (s *AttachmentService) RemoveReference(ctx context.Context, actor *domain.User, attachmentID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("actor required")
	}
	ref, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return apperrors.MapError(err)
	}
	if ref.UploaderID != actor.ID && actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only the uploader or an admin may remove an attachment")
	}
	if err := s.attachments.Delete(ctx, attachmentID); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("attachment reference removed",
		zap.String("attachment_id", attachmentID),
		zap.String("actor_id", actor.ID))
	return nil
}

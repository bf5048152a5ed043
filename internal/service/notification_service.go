package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gsg-it/helpdesk/internal/config"
	"github.com/gsg-it/helpdesk/internal/events"
)

// NotificationService turns ticket events into user-facing notifications.
// Delivery is best-effort: a failed notification is logged and dropped, it
// never fails the ticket operation that triggered it.
type NotificationService struct {
	redis      *redis.Client
	httpClient *http.Client
	cfg        config.NotificationConfig
	logger     *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(redisClient *redis.Client, cfg config.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		redis:      redisClient,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
		logger:     logger,
	}
}

// Handle processes a single event: the payload is pushed onto the Redis
// outbox list for the mail sender, and optionally forwarded to a webhook.
func (s *NotificationService) Handle(ctx context.Context, event events.Event) error {
	s.logger.Info("notification",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("ticket_number", event.Ticket.TicketNumber),
		zap.String("recipient", event.Recipient),
		zap.String("from", s.cfg.EmailFrom),
		zap.String("subject", subjectFor(event)))

	if err := s.enqueue(ctx, event); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
	if err := s.forward(ctx, event); err != nil {
		s.logger.Warn("failed to forward notification to webhook",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) enqueue(ctx context.Context, event events.Event) error {
	if s.redis == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.redis.LPush(ctx, s.cfg.OutboxKey, payload).Err()
}

func (s *NotificationService) forward(ctx context.Context, event events.Event) error {
	if s.cfg.WebhookURL == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func subjectFor(event events.Event) string {
	switch event.Type {
	case events.EventTicketCreated:
		return fmt.Sprintf("Ticket %s created", event.Ticket.TicketNumber)
	case events.EventManagerApprovalRequested:
		return fmt.Sprintf("Approval requested for ticket %s", event.Ticket.TicketNumber)
	case events.EventManagerApproved:
		return fmt.Sprintf("Ticket %s approved", event.Ticket.TicketNumber)
	case events.EventManagerRejected:
		return fmt.Sprintf("Ticket %s rejected", event.Ticket.TicketNumber)
	case events.EventAdminStatusChanged:
		return fmt.Sprintf("Ticket %s status changed to %s", event.Ticket.TicketNumber, event.Ticket.Status)
	case events.EventTicketResolved:
		return fmt.Sprintf("Ticket %s resolved", event.Ticket.TicketNumber)
	case events.EventTicketClosed:
		return fmt.Sprintf("Ticket %s closed", event.Ticket.TicketNumber)
	case events.EventTicketAssigned:
		return fmt.Sprintf("Ticket %s assigned to you", event.Ticket.TicketNumber)
	default:
		return fmt.Sprintf("Ticket %s update", event.Ticket.TicketNumber)
	}
}

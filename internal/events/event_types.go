package events

import (
	"time"

	"github.com/gsg-it/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "TICKET_CREATED"
	EventManagerApprovalRequested EventType = "MANAGER_APPROVAL_REQUESTED"
	EventManagerApproved          EventType = "MANAGER_APPROVED"
	EventManagerRejected          EventType = "MANAGER_REJECTED"
	EventAdminStatusChanged       EventType = "ADMIN_STATUS_CHANGED"
	EventTicketResolved           EventType = "TICKET_RESOLVED"
	EventTicketClosed             EventType = "TICKET_CLOSED"
	EventTicketAssigned           EventType = "TICKET_ASSIGNED"
)

// TicketSnapshot carries the ticket state at emission time, so handlers never
// reach back into the store.
type TicketSnapshot struct {
	ID             string                 `json:"id"`
	TicketNumber   string                 `json:"ticket_number"`
	Title          string                 `json:"title"`
	Category       domain.TicketCategory  `json:"category"`
	Status         domain.TicketStatus    `json:"status"`
	ApprovalStatus domain.ApprovalStatus  `json:"approval_status"`
	Priority       *domain.TicketPriority `json:"priority,omitempty"`
	RequesterID    string                 `json:"requester_id"`
	ManagerID      *string                `json:"manager_id,omitempty"`
	AssignedToID   *string                `json:"assigned_to_id,omitempty"`
}

// SnapshotOf builds a snapshot from a ticket.
func SnapshotOf(ticket *domain.Ticket) TicketSnapshot {
	return TicketSnapshot{
		ID:             ticket.ID,
		TicketNumber:   ticket.TicketNumber,
		Title:          ticket.Title,
		Category:       ticket.Category,
		Status:         ticket.Status,
		ApprovalStatus: ticket.ApprovalStatus,
		Priority:       ticket.Priority,
		RequesterID:    ticket.RequesterID,
		ManagerID:      ticket.ManagerID,
		AssignedToID:   ticket.AssignedToID,
	}
}

// Event represents a notification emitted by the ticket operations.
// Recipient identifies the user the notification is addressed to; Comment is
// optional free text from the actor (approval note, status comment).
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Ticket    TicketSnapshot `json:"ticket"`
	Recipient string         `json:"recipient"`
	ActorID   string         `json:"actor_id"`
	Comment   string         `json:"comment,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

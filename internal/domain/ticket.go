package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPendingManagerApproval TicketStatus = "PENDING_MANAGER_APPROVAL"
	TicketStatusOpen                   TicketStatus = "OPEN"
	TicketStatusInProgress             TicketStatus = "IN_PROGRESS"
	TicketStatusResolved               TicketStatus = "RESOLVED"
	TicketStatusClosed                 TicketStatus = "CLOSED"
)

// statusOrder ranks the post-approval lifecycle. PENDING_MANAGER_APPROVAL is
// deliberately absent: it is only left through an approval decision.
var statusOrder = map[TicketStatus]int{
	TicketStatusOpen:       0,
	TicketStatusInProgress: 1,
	TicketStatusResolved:   2,
	TicketStatusClosed:     3,
}

// StatusRank returns the position of a status in the lifecycle ordering.
// The second result is false for PENDING_MANAGER_APPROVAL and unknown values.
func StatusRank(status TicketStatus) (int, bool) {
	rank, ok := statusOrder[status]
	return rank, ok
}

// NextStatus returns the status immediately following the given one.
func NextStatus(status TicketStatus) (TicketStatus, bool) {
	switch status {
	case TicketStatusOpen:
		return TicketStatusInProgress, true
	case TicketStatusInProgress:
		return TicketStatusResolved, true
	case TicketStatusResolved:
		return TicketStatusClosed, true
	}
	return "", false
}

// ApprovalStatus enumerates the manager-approval sub-state.
type ApprovalStatus string

const (
	ApprovalStatusNA       ApprovalStatus = "NA"
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// TicketPriority enumerates urgency. Tickets carry no priority until a
// manager or staff member sets one.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Requester and CreatedAt are
// immutable after creation; the decision timestamps are each set at most
// once, the first time the corresponding transition happens.
type Ticket struct {
	ID             string
	TicketNumber   string
	Title          string
	Description    string
	Category       TicketCategory
	Priority       *TicketPriority
	Status         TicketStatus
	ApprovalStatus ApprovalStatus
	RequesterID    string
	ManagerID      *string
	AssignedToID   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ApprovedAt     *time.Time
	RejectedAt     *time.Time
	InProgressAt   *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
}

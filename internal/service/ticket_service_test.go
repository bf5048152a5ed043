package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gsg-it/helpdesk/internal/domain"
	"github.com/gsg-it/helpdesk/internal/events"
	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

type ticketFixture struct {
	service    *TicketService
	tickets    *memTicketRepo
	users      *memUserRepo
	comments   *memCommentRepo
	history    *memHistoryRepo
	dispatcher *captureDispatcher

	employee *domain.User
	manager  *domain.User
	support  *domain.User
	admin    *domain.User
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	f := &ticketFixture{
		tickets:    newMemTicketRepo(),
		users:      newMemUserRepo(),
		comments:   newMemCommentRepo(),
		history:    newMemHistoryRepo(),
		dispatcher: &captureDispatcher{},
	}
	f.service = NewTicketService(TicketDependencies{
		TicketRepo:  f.tickets,
		UserRepo:    f.users,
		CommentRepo: f.comments,
		HistoryRepo: f.history,
		Dispatcher:  f.dispatcher,
		Logger:      zap.NewNop(),
	})

	f.employee = f.addUser(t, "alice", domain.RoleEmployee)
	f.manager = f.addUser(t, "bob", domain.RoleManager)
	f.support = f.addUser(t, "carol", domain.RoleITSupport)
	f.admin = f.addUser(t, "dave", domain.RoleAdmin)
	return f
}

func (f *ticketFixture) addUser(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:   name,
		Email:  name + "@example.com",
		Role:   role,
		Status: domain.UserStatusActive,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *ticketFixture) createTicket(t *testing.T, category domain.TicketCategory, managerID *string) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(context.Background(), f.employee, TicketCreateInput{
		Title:       "laptop acting up",
		Description: "screen flickers on boot",
		Category:    category,
		ManagerID:   managerID,
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketRequiresManagerForApprovalCategories(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.service.CreateTicket(context.Background(), f.employee, TicketCreateInput{
		Title:    "need new keyboard",
		Category: domain.CategoryHardware,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	ticket := f.createTicket(t, domain.CategoryHardware, &f.manager.ID)
	assert.Equal(t, domain.TicketStatusPendingManagerApproval, ticket.Status)
	assert.Equal(t, domain.ApprovalStatusPending, ticket.ApprovalStatus)
	require.NotNil(t, ticket.ManagerID)
	assert.Equal(t, f.manager.ID, *ticket.ManagerID)
	assert.True(t, strings.HasPrefix(ticket.TicketNumber, "HD-"))

	types := f.dispatcher.typesSeen()
	assert.Contains(t, types, events.EventTicketCreated)
	assert.Contains(t, types, events.EventManagerApprovalRequested)
}

func TestCreateTicketNetworkSkipsApproval(t *testing.T) {
	f := newTicketFixture(t)

	ticket := f.createTicket(t, domain.CategoryNetwork, nil)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.ApprovalStatusNA, ticket.ApprovalStatus)

	types := f.dispatcher.typesSeen()
	assert.Contains(t, types, events.EventTicketCreated)
	assert.NotContains(t, types, events.EventManagerApprovalRequested)
}

func TestCreateTicketRejectsBadInput(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.service.CreateTicket(context.Background(), f.employee, TicketCreateInput{
		Title:    "   ",
		Category: domain.CategoryNetwork,
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.service.CreateTicket(context.Background(), f.employee, TicketCreateInput{
		Title:    "mystery",
		Category: domain.TicketCategory("PRINTER"),
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.service.CreateTicket(context.Background(), f.employee, TicketCreateInput{
		Title:     "vpn access",
		Category:  domain.CategorySoftware,
		ManagerID: &f.support.ID,
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "a non-manager cannot be the approver")
}

func TestDecideApprovalApprove(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	updated, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
		Comment:  "go ahead",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Equal(t, domain.ApprovalStatusApproved, updated.ApprovalStatus)
	assert.NotNil(t, updated.ApprovedAt)
	assert.Nil(t, updated.RejectedAt)

	published := f.dispatcher.published()
	last := published[len(published)-1]
	assert.Equal(t, events.EventManagerApproved, last.Type)
	assert.Equal(t, f.employee.ID, last.Recipient)
	assert.Equal(t, "go ahead", last.Comment)

	comments, err := f.comments.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "go ahead", comments[0].Body)
}

func TestDecideApprovalRejectKeepsPendingStatus(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	updated, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusRejected,
		Comment:  "duplicate of an open request",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, updated.ApprovalStatus)
	assert.Equal(t, domain.TicketStatusPendingManagerApproval, updated.Status,
		"rejection resolves the approval but does not move the lifecycle")
	assert.NotNil(t, updated.RejectedAt)
	assert.Nil(t, updated.ApprovedAt)

	// A rejected ticket still cannot be worked on.
	_, err = f.service.TransitionStatus(context.Background(), f.support, ticket.ID, domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestDecideApprovalSecurityRequiresPriority(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategorySecurity, &f.manager.ID)

	_, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	high := domain.TicketPriorityHigh
	updated, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
		Priority: &high,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Priority)
	assert.Equal(t, domain.TicketPriorityHigh, *updated.Priority)

	// Rejecting a security ticket needs no priority.
	other := f.createTicket(t, domain.CategorySecurity, &f.manager.ID)
	rejected, err := f.service.DecideApproval(context.Background(), f.manager, other.ID, ApprovalInput{
		Decision: domain.ApprovalStatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, rejected.ApprovalStatus)
}

func TestDecideApprovalAccessRules(t *testing.T) {
	f := newTicketFixture(t)
	otherManager := f.addUser(t, "erin", domain.RoleManager)
	ticket := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	_, err := f.service.DecideApproval(context.Background(), f.employee, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
	})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.service.DecideApproval(context.Background(), otherManager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
	})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "only the named manager may decide")

	// IT support overrides the named manager.
	updated, err := f.service.DecideApproval(context.Background(), f.support, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, updated.ApprovalStatus)
}

func TestDecideApprovalInvalidDecision(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	_, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusPending,
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestDecideApprovalOnNonApprovalTicket(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	_, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestDecideApprovalTwiceConflicts(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	_, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
	})
	require.NoError(t, err)

	_, err = f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusRejected,
	})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"), "the first decision wins, the second gets a conflict")
}

func TestTransitionStatusOneStepForSupport(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	_, err := f.service.TransitionStatus(context.Background(), f.support, ticket.ID, domain.TicketStatusResolved, "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "support cannot skip IN_PROGRESS")

	updated, err := f.service.TransitionStatus(context.Background(), f.support, ticket.ID, domain.TicketStatusInProgress, "looking into it")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.NotNil(t, updated.InProgressAt)

	_, err = f.service.TransitionStatus(context.Background(), f.support, updated.ID, domain.TicketStatusOpen, "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "no moving backwards")
}

func TestTransitionStatusAdminJumpsForward(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	updated, err := f.service.TransitionStatus(context.Background(), f.admin, ticket.ID, domain.TicketStatusClosed, "handled offline")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	assert.NotNil(t, updated.ClosedAt)
	assert.Nil(t, updated.InProgressAt, "skipped states get no timestamp")

	types := f.dispatcher.typesSeen()
	assert.Contains(t, types, events.EventAdminStatusChanged)
	assert.Contains(t, types, events.EventTicketClosed)

	_, err = f.service.TransitionStatus(context.Background(), f.admin, ticket.ID, domain.TicketStatusOpen, "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "admin cannot regress either")
}

func TestTransitionStatusAdminSameStatusIsNoop(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)
	before := len(f.dispatcher.published())

	updated, err := f.service.TransitionStatus(context.Background(), f.admin, ticket.ID, domain.TicketStatusOpen, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Len(t, f.dispatcher.published(), before, "a no-op emits nothing")
}

func TestTransitionStatusRoleAndStateGuards(t *testing.T) {
	f := newTicketFixture(t)
	pending := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)
	open := f.createTicket(t, domain.CategoryNetwork, nil)

	_, err := f.service.TransitionStatus(context.Background(), f.employee, open.ID, domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.service.TransitionStatus(context.Background(), f.manager, open.ID, domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "managers approve, they do not work tickets")

	_, err = f.service.TransitionStatus(context.Background(), f.support, pending.ID, domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "pending approval blocks all transitions")

	_, err = f.service.TransitionStatus(context.Background(), f.support, open.ID, domain.TicketStatus("ARCHIVED"), "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.service.TransitionStatus(context.Background(), f.support, "ticket-999", domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestCloseOwnTicket(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	_, err := f.service.CloseOwnTicket(context.Background(), f.employee, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "only resolved tickets close this way")

	_, err = f.service.TransitionStatus(context.Background(), f.support, ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	_, err = f.service.TransitionStatus(context.Background(), f.support, ticket.ID, domain.TicketStatusResolved, "replaced the cable")
	require.NoError(t, err)

	_, err = f.service.CloseOwnTicket(context.Background(), f.admin, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "only the requester closes their own ticket")

	closed, err := f.service.CloseOwnTicket(context.Background(), f.employee, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
}

func TestListApprovalQueueScopesToManager(t *testing.T) {
	f := newTicketFixture(t)
	otherManager := f.addUser(t, "erin", domain.RoleManager)

	mine := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)
	f.createTicket(t, domain.CategorySoftware, &otherManager.ID)

	queue, err := f.service.ListApprovalQueue(context.Background(), f.manager, 20, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, mine.ID, queue[0].ID)

	// Admin sees every pending approval.
	all, err := f.service.ListApprovalQueue(context.Background(), f.admin, 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.service.ListApprovalQueue(context.Background(), f.employee, 20, 0)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestGetTicketVisibility(t *testing.T) {
	f := newTicketFixture(t)
	stranger := f.addUser(t, "frank", domain.RoleEmployee)
	ticket := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	_, _, err := f.service.GetTicket(context.Background(), stranger, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	for _, viewer := range []*domain.User{f.employee, f.manager, f.support, f.admin} {
		_, _, err := f.service.GetTicket(context.Background(), viewer, ticket.ID)
		assert.NoError(t, err)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newTicketFixture(t)

	ticket := f.createTicket(t, domain.CategorySecurity, &f.manager.ID)
	assert.Equal(t, domain.TicketStatusPendingManagerApproval, ticket.Status)

	high := domain.TicketPriorityHigh
	approved, err := f.service.DecideApproval(context.Background(), f.manager, ticket.ID, ApprovalInput{
		Decision: domain.ApprovalStatusApproved,
		Priority: &high,
		Comment:  "approved, rotate the credentials",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, approved.Status)

	inProgress, err := f.service.TransitionStatus(context.Background(), f.support, ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	resolved, err := f.service.TransitionStatus(context.Background(), f.support, inProgress.ID, domain.TicketStatusResolved, "rotated and verified")
	require.NoError(t, err)
	closed, err := f.service.CloseOwnTicket(context.Background(), f.employee, resolved.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.NotNil(t, closed.ApprovedAt)
	assert.NotNil(t, closed.InProgressAt)
	assert.NotNil(t, closed.ResolvedAt)
	assert.NotNil(t, closed.ClosedAt)

	entries, err := f.service.ListHistory(context.Background(), f.admin, ticket.ID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "approval, two transitions, requester close")

	types := f.dispatcher.typesSeen()
	assert.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventManagerApprovalRequested,
		events.EventManagerApproved,
		events.EventTicketResolved,
		events.EventTicketClosed,
	}, types)
}

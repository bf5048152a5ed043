package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gsg-it/helpdesk/internal/domain"
	"github.com/gsg-it/helpdesk/internal/events"
	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

func newAssignmentFixture(t *testing.T) (*ticketFixture, *AssignmentService) {
	t.Helper()
	f := newTicketFixture(t)
	svc := NewAssignmentService(TicketDependencies{
		TicketRepo:  f.tickets,
		UserRepo:    f.users,
		HistoryRepo: f.history,
		Dispatcher:  f.dispatcher,
		Logger:      zap.NewNop(),
	})
	return f, svc
}

func TestAssignTicket(t *testing.T) {
	f, svc := newAssignmentFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	updated, err := svc.Assign(context.Background(), f.admin, ticket.ID, f.support.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedToID)
	assert.Equal(t, f.support.ID, *updated.AssignedToID)

	published := f.dispatcher.published()
	last := published[len(published)-1]
	assert.Equal(t, events.EventTicketAssigned, last.Type)
	assert.Equal(t, f.support.ID, last.Recipient)
}

func TestAssignTicketRoleChecks(t *testing.T) {
	f, svc := newAssignmentFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	_, err := svc.Assign(context.Background(), f.employee, ticket.ID, f.support.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = svc.Assign(context.Background(), f.manager, ticket.ID, f.support.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = svc.Assign(context.Background(), f.support, ticket.ID, f.employee.ID)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "only support staff can be assignees")

	_, err = svc.Assign(context.Background(), f.support, ticket.ID, "user-999")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = svc.Assign(context.Background(), f.support, "ticket-999", f.support.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestAssignTicketIdempotent(t *testing.T) {
	f, svc := newAssignmentFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	_, err := svc.Assign(context.Background(), f.support, ticket.ID, f.support.ID)
	require.NoError(t, err)
	before := len(f.dispatcher.published())

	again, err := svc.Assign(context.Background(), f.support, ticket.ID, f.support.ID)
	require.NoError(t, err)
	require.NotNil(t, again.AssignedToID)
	assert.Equal(t, f.support.ID, *again.AssignedToID)
	assert.Len(t, f.dispatcher.published(), before, "re-assigning the same agent emits nothing")
}

func TestAssignTicketWorksInAnyStatus(t *testing.T) {
	f, svc := newAssignmentFixture(t)
	pending := f.createTicket(t, domain.CategorySoftware, &f.manager.ID)

	updated, err := svc.Assign(context.Background(), f.admin, pending.ID, f.support.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendingManagerApproval, updated.Status,
		"assignment does not touch status")
	require.NotNil(t, updated.AssignedToID)
}

func TestSelfAssignAndUnassign(t *testing.T) {
	f, svc := newAssignmentFixture(t)
	ticket := f.createTicket(t, domain.CategoryNetwork, nil)

	updated, err := svc.SelfAssign(context.Background(), f.support, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedToID)
	assert.Equal(t, f.support.ID, *updated.AssignedToID)

	cleared, err := svc.Unassign(context.Background(), f.support, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedToID)

	// Unassigning an unassigned ticket is a no-op.
	cleared, err = svc.Unassign(context.Background(), f.admin, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedToID)
}

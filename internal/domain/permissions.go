package domain

// Operation identifies a guarded ticket operation.
type Operation string

const (
	OperationCreateTicket     Operation = "ticket.create"
	OperationDecideApproval   Operation = "ticket.approval.decide"
	OperationTransitionStatus Operation = "ticket.status.transition"
	OperationAssignTicket     Operation = "ticket.assign"
	OperationCloseOwnTicket   Operation = "ticket.close_own"
	OperationCommentTicket    Operation = "ticket.comment"
)

// permissionMatrix encodes which roles may invoke which operation. Finer
// rules (the manager must be the ticket's manager, only IT may advance one
// step at a time, only the requester may close their own resolved ticket)
// live in the services on top of this table.
var permissionMatrix = map[Operation]map[Role]bool{
	OperationCreateTicket: {
		RoleEmployee:  true,
		RoleManager:   true,
		RoleITSupport: true,
		RoleAdmin:     true,
	},
	OperationDecideApproval: {
		RoleManager:   true,
		RoleITSupport: true,
		RoleAdmin:     true,
	},
	OperationTransitionStatus: {
		RoleITSupport: true,
		RoleAdmin:     true,
	},
	OperationAssignTicket: {
		RoleITSupport: true,
		RoleAdmin:     true,
	},
	OperationCloseOwnTicket: {
		RoleEmployee:  true,
		RoleManager:   true,
		RoleITSupport: true,
		RoleAdmin:     true,
	},
	OperationCommentTicket: {
		RoleEmployee:  true,
		RoleManager:   true,
		RoleITSupport: true,
		RoleAdmin:     true,
	},
}

// RoleAllowed reports whether the role may invoke the operation.
func RoleAllowed(op Operation, role Role) bool {
	return permissionMatrix[op][role]
}

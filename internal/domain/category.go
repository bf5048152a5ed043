package domain

// TicketCategory classifies the subject of a support request.
type TicketCategory string

const (
	CategorySoftware       TicketCategory = "SOFTWARE"
	CategoryHardware       TicketCategory = "HARDWARE"
	CategoryAccessAndM365  TicketCategory = "ACCESS_AND_M365"
	CategoryNetwork        TicketCategory = "NETWORK"
	CategoryAccount        TicketCategory = "ACCOUNT"
	CategoryEngineeringApp TicketCategory = "ENGINEERING_APP"
	CategoryProcurement    TicketCategory = "PROCUREMENT"
	CategorySecurity       TicketCategory = "SECURITY"
	CategoryOthers         TicketCategory = "OTHERS"
)

// Valid reports whether the category is a known value.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategorySoftware, CategoryHardware, CategoryAccessAndM365, CategoryNetwork,
		CategoryAccount, CategoryEngineeringApp, CategoryProcurement, CategorySecurity,
		CategoryOthers:
		return true
	}
	return false
}

// approvalRequired is the static category policy. Network issues are handled
// directly by IT; everything else needs a manager sign-off first.
var approvalRequired = map[TicketCategory]bool{
	CategorySoftware:       true,
	CategoryHardware:       true,
	CategoryAccessAndM365:  true,
	CategoryNetwork:        false,
	CategoryAccount:        true,
	CategoryEngineeringApp: true,
	CategoryProcurement:    true,
	CategorySecurity:       true,
	CategoryOthers:         true,
}

// RequiresApproval reports whether tickets in the category must pass manager
// approval before IT may act on them.
func RequiresApproval(category TicketCategory) bool {
	return approvalRequired[category]
}

// RequiresPriorityOnApproval reports whether an approval decision for the
// category must carry a priority. Security-sensitive requests cannot be
// approved without one.
func RequiresPriorityOnApproval(category TicketCategory) bool {
	return category == CategorySecurity
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gsg-it/helpdesk/internal/api/http/handlers"
	"github.com/gsg-it/helpdesk/internal/auth"
	"github.com/gsg-it/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Get("/me", cfg.Users.Me)
	authProtected.Post("/password/change", cfg.Users.ChangePassword)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/managers", cfg.Users.ListManagers)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)
	tickets.Delete("/:id/attachments/:attachmentId", cfg.Tickets.RemoveAttachment)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle)

	approvals := staff.Group("", auth.RequireRole(domain.RoleManager, domain.RoleITSupport, domain.RoleAdmin))
	approvals.Get("/approvals", cfg.StaffTickets.ListApprovalQueue)
	approvals.Post("/tickets/:id/approval", cfg.StaffTickets.DecideApproval)

	support := staff.Group("", auth.RequireRole(domain.RoleITSupport, domain.RoleAdmin))
	support.Get("/tickets", cfg.StaffTickets.ListTickets)
	support.Post("/tickets/:id/status", cfg.StaffTickets.UpdateStatus)
	support.Post("/tickets/:id/assign", cfg.StaffTickets.Assign)
	support.Post("/tickets/:id/assign/self", cfg.StaffTickets.SelfAssign)
	support.Delete("/tickets/:id/assign", cfg.StaffTickets.Unassign)
}

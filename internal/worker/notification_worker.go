package worker

import (
	"github.com/gsg-it/helpdesk/internal/events"
	"github.com/gsg-it/helpdesk/internal/service"
)

// RegisterNotificationHandlers subscribes the notification service to every
// ticket event type.
func RegisterNotificationHandlers(dispatcher events.Dispatcher, notifications *service.NotificationService) {
	types := []events.EventType{
		events.EventTicketCreated,
		events.EventManagerApprovalRequested,
		events.EventManagerApproved,
		events.EventManagerRejected,
		events.EventAdminStatusChanged,
		events.EventTicketResolved,
		events.EventTicketClosed,
		events.EventTicketAssigned,
	}
	for _, eventType := range types {
		dispatcher.Subscribe(eventType, notifications.Handle)
	}
}

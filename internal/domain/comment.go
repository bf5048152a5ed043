package domain

import "time"

// Comment is one entry in a ticket's append-only comment thread.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

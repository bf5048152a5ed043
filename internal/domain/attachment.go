package domain

import "time"

// AttachmentReference tracks metadata for a file held by the external
// attachment store. The portal never touches the bytes themselves.
type AttachmentReference struct {
	ID         string
	TicketID   string
	FileName   string
	SizeBytes  int64
	UploaderID string
	UploadedAt time.Time
}

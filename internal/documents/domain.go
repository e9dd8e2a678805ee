package documents

import "time"

// Document is the stored metadata for one uploaded student document. File
// bytes live in object storage outside this service.
type Document struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	StudentID int64     `json:"student_id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

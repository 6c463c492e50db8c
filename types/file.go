package types

import "time"

// File records metadata about an uploaded object. The binary content
// lives in the object store under a key derived from the file ID.
type File struct {
	// ID is the unique identifier of the file, assigned on creation.
	ID string `json:"id" db:"id"`

	// UserID references the user that uploaded the file.
	UserID string `json:"userId" db:"user_id"`

	// OriginalName is the filename supplied by the client.
	OriginalName string `json:"originalName" db:"original_name"`

	// MimeType is the declared content type of the upload.
	MimeType string `json:"mimeType" db:"mime_type"`

	// Size is the content length in bytes.
	Size int64 `json:"size" db:"size"`

	// UploadTime is when the upload was accepted. Listings order by it,
	// newest first.
	UploadTime time.Time `json:"uploadTime" db:"upload_time"`

	// CreatedAt is the timestamp when the file record was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the file record.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// User carries the owner's profile on admin listings and upload
	// responses. Nil elsewhere.
	User *User `json:"user,omitempty" db:"-"`
}

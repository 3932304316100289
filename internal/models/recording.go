package models

import (
	"path"
	"time"
)

// RecordingMeta is the metadata document persisted per uploaded recording.
// It is built once after a successful upload and written to the document
// store; this service never mutates or re-reads it afterwards.
type RecordingMeta struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Duration    float64   `json:"duration"` // seconds; stored as supplied, not validated
	CreatedAt   time.Time `json:"createdAt"`
	StoragePath string    `json:"storagePath"`
	DownloadURL string    `json:"downloadURL"`
	UserID      string    `json:"userId"`
}

// DocumentPath returns the document store key: users/{userId}/recordings/{id}.
// Writes to the same path overwrite, so the record is idempotent by id
// within a user.
func (m *RecordingMeta) DocumentPath() string {
	return path.Join("users", m.UserID, "recordings", m.ID)
}

// Fields returns the document fields for persistence.
func (m *RecordingMeta) Fields() map[string]any {
	return map[string]any{
		"id":          m.ID,
		"title":       m.Title,
		"duration":    m.Duration,
		"createdAt":   m.CreatedAt,
		"storagePath": m.StoragePath,
		"downloadURL": m.DownloadURL,
		"userId":      m.UserID,
	}
}

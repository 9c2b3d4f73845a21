package model

import "time"

// Envelope describes one persisted record
type Envelope struct {
	RecordID      string    `json:"record_id"`
	RecordType    string    `json:"record_type"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	Path          string    `json:"path"`
	Record        *Record   `json:"-"`
}

// AuditEntry is retained for a failed extraction: the transcript plus an error marker
type AuditEntry struct {
	ID         string    `json:"id"` // ULID
	RecordType string    `json:"record_type"`
	Code       string    `json:"code"`
	Path       string    `json:"path,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Message    string    `json:"message"`
	Transcript string    `json:"transcript"`
	CreatedAt  time.Time `json:"created_at"`
}

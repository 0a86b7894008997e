package models

import "time"

// IngestStatus is the lifecycle state of one uploaded file.
type IngestStatus string

const (
	StatusUploading  IngestStatus = "uploading"
	StatusProcessing IngestStatus = "processing"
	StatusCompleted  IngestStatus = "completed"
	StatusFailed     IngestStatus = "failed"
)

// Terminal reports whether the status will not change again.
func (s IngestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusInfo is the progress snapshot persisted for one file identifier.
// Writes are last-write-wins; Progress is monotonically non-decreasing for
// the lifetime of one ingestion.
type StatusInfo struct {
	Status        IngestStatus `json:"status"`
	Progress      int          `json:"progress"`
	ProcessedRows int64        `json:"processedRows"`
	Error         string       `json:"error,omitempty"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

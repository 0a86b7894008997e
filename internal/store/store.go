// Package store holds the collaborator adapters of the ingestion pipeline:
// the durable row store (Postgres or ClickHouse) and the Redis-backed
// status/result store.
package store

import (
	"context"
	"errors"

	"github.com/reportstream/reportstream/internal/models"
)

// ErrNotFound is returned when no status or result exists for a file identifier.
var ErrNotFound = errors.New("store: not found")

// RowStore performs idempotent bulk inserts of normalized records. Writes
// are duplicate-tolerant on the natural row key, so re-issuing a batch after
// a partial failure is safe (at-least-once delivery).
type RowStore interface {
	WriteBatch(ctx context.Context, fileID string, recs []*models.Record) error
}

// StatusStore persists the progress/status snapshot per file identifier.
// Writes are last-write-wins.
type StatusStore interface {
	SetStatus(ctx context.Context, fileID string, st models.StatusInfo) error
	GetStatus(ctx context.Context, fileID string) (*models.StatusInfo, error)
}

// ResultStore persists the analytical result per file identifier. Complete
// writes the result together with its terminal status as one atomic step:
// a reader can never observe the completed status without the result.
type ResultStore interface {
	Complete(ctx context.Context, fileID string, res *models.AnalysisResult, st models.StatusInfo) error
	GetResult(ctx context.Context, fileID string) (*models.AnalysisResult, error)
}

package store

import (
	"context"
	"sync"

	"github.com/reportstream/reportstream/internal/models"
)

var (
	_ RowStore    = (*MemoryStore)(nil)
	_ StatusStore = (*MemoryStore)(nil)
	_ ResultStore = (*MemoryStore)(nil)
)

// MemoryStore is an in-memory implementation of every store interface, used
// in tests and local development. WriteHook, when set, runs before each
// batch write and can inject failures.
type MemoryStore struct {
	mu sync.Mutex

	Batches   map[string][][]*models.Record
	Statuses  map[string][]models.StatusInfo
	Results   map[string]*models.AnalysisResult
	WriteHook func(fileID string, recs []*models.Record) error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Batches:  make(map[string][][]*models.Record),
		Statuses: make(map[string][]models.StatusInfo),
		Results:  make(map[string]*models.AnalysisResult),
	}
}

// WriteBatch appends the batch, after running WriteHook if present.
func (m *MemoryStore) WriteBatch(_ context.Context, fileID string, recs []*models.Record) error {
	m.mu.Lock()
	hook := m.WriteHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(fileID, recs); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]*models.Record, len(recs))
	copy(batch, recs)
	m.Batches[fileID] = append(m.Batches[fileID], batch)
	return nil
}

// RowCount returns the number of rows written for a file identifier.
func (m *MemoryStore) RowCount(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.Batches[fileID] {
		n += len(b)
	}
	return n
}

// SetStatus appends a status snapshot, preserving write order for assertions.
func (m *MemoryStore) SetStatus(_ context.Context, fileID string, st models.StatusInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[fileID] = append(m.Statuses[fileID], st)
	return nil
}

// GetStatus returns the latest status or ErrNotFound.
func (m *MemoryStore) GetStatus(_ context.Context, fileID string) (*models.StatusInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.Statuses[fileID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	st := history[len(history)-1]
	return &st, nil
}

// Complete stores the result and terminal status together.
func (m *MemoryStore) Complete(_ context.Context, fileID string, res *models.AnalysisResult, st models.StatusInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results[fileID] = res
	m.Statuses[fileID] = append(m.Statuses[fileID], st)
	return nil
}

// GetResult returns the stored result or ErrNotFound.
func (m *MemoryStore) GetResult(_ context.Context, fileID string) (*models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.Results[fileID]
	if !ok {
		return nil, ErrNotFound
	}
	return res, nil
}

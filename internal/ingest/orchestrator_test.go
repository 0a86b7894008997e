package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/reportstream/reportstream/internal/models"
	"github.com/reportstream/reportstream/internal/store"
)

const testHeader = "Date,Website,Country,Device,Ad Format,Requests,Impressions,Clicks,Revenue\n"

func newTestOrchestrator(mem *store.MemoryStore, cfg Config) *Orchestrator {
	return New(mem, mem, mem, nil, zap.NewNop(), cfg)
}

func ingestCSV(t *testing.T, orch *Orchestrator, fileID, csv string) error {
	t.Helper()
	return orch.Ingest(context.Background(), strings.NewReader(csv), fileID, fileID+".csv", int64(len(csv)))
}

func TestIngestEndToEnd(t *testing.T) {
	csv := testHeader +
		"2024-01-15,a.com,US,Mobile,Banner,200,100,5,10\n" +
		"2024-01-15,a.com,DE,Desktop,Video,100,50,1,20\n" +
		"2024-01-16,b.com,US,Mobile,Banner,50,25,2,5\n"

	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{BatchSize: 2})

	if err := ingestCSV(t, orch, "file-1", csv); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	st, err := orch.Status(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.StatusCompleted || st.Progress != 100 || st.ProcessedRows != 3 {
		t.Fatalf("unexpected final status: %+v", st)
	}

	res, err := orch.Result(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Summary.TotalRows != 3 {
		t.Fatalf("totalRows = %d", res.Summary.TotalRows)
	}
	if res.Summary.TotalRevenue != 35 {
		t.Fatalf("totalRevenue = %v", res.Summary.TotalRevenue)
	}
	if len(res.TopWebsites) == 0 || res.TopWebsites[0].Name != "a.com" || res.TopWebsites[0].Revenue != 30 {
		t.Fatalf("topWebsites = %+v", res.TopWebsites)
	}
	if len(res.DailyTrend) != 2 || res.DailyTrend[0].Date != "2024-01-15" {
		t.Fatalf("dailyTrend = %+v", res.DailyTrend)
	}
	if got := mem.RowCount("file-1"); got != 3 {
		t.Fatalf("rows written = %d, want 3", got)
	}
	if batches := len(mem.Batches["file-1"]); batches != 2 {
		t.Fatalf("batches = %d, want 2", batches)
	}
}

func TestIngestMinimalColumns(t *testing.T) {
	csv := "Date,Website,Country,Revenue\n" +
		"2024-01-01,a.com,US,10\n" +
		"2024-01-01,a.com,US,20\n" +
		"2024-01-02,b.com,CA,5\n"

	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{})

	if err := ingestCSV(t, orch, "file-1", csv); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	res, err := orch.Result(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Summary.TotalRows != 3 || res.Summary.TotalRevenue != 35 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if res.TopWebsites[0].Name != "a.com" || res.TopWebsites[0].Revenue != 30 {
		t.Fatalf("topWebsites = %+v", res.TopWebsites)
	}
	want := []struct {
		date    string
		revenue float64
	}{{"2024-01-01", 30}, {"2024-01-02", 5}}
	if len(res.DailyTrend) != len(want) {
		t.Fatalf("dailyTrend = %+v", res.DailyTrend)
	}
	for i, w := range want {
		if res.DailyTrend[i].Date != w.date || res.DailyTrend[i].Revenue != w.revenue {
			t.Fatalf("dailyTrend[%d] = %+v, want %+v", i, res.DailyTrend[i], w)
		}
	}
}

func TestIngestRejectsRowsMissingRequiredFields(t *testing.T) {
	csv := testHeader +
		"2024-01-15,a.com,US,Mobile,Banner,200,100,5,10\n" +
		"2024-01-15,,US,Mobile,Banner,1,1,1,99\n" +
		",b.com,US,Mobile,Banner,1,1,1,99\n" +
		"2024-01-16,b.com,US,Mobile,Banner,50,25,2,5\n"

	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{})

	if err := ingestCSV(t, orch, "file-1", csv); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	res, err := orch.Result(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Summary.TotalRows != 2 {
		t.Fatalf("totalRows = %d, want 2", res.Summary.TotalRows)
	}
	if res.Summary.TotalRevenue != 15 {
		t.Fatalf("rejected rows leaked into totals: %v", res.Summary.TotalRevenue)
	}
	if got := mem.RowCount("file-1"); got != 2 {
		t.Fatalf("rows written = %d, want 2", got)
	}
}

func TestIngestTruncatedTailStillCompletes(t *testing.T) {
	csv := testHeader +
		"2024-01-15,a.com,US,Mobile,Banner,200,100,5,10\n" +
		"2024-01-16,b.com,US,Mobile,Banner,50,25,2,\"5"

	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{})

	if err := ingestCSV(t, orch, "file-1", csv); err != nil {
		t.Fatalf("truncated upload should still complete: %v", err)
	}
	res, err := orch.Result(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Summary.TotalRows != 2 {
		t.Fatalf("totalRows = %d, want 2", res.Summary.TotalRows)
	}
	if res.Summary.TotalRevenue != 15 {
		t.Fatalf("totalRevenue = %v, want 15", res.Summary.TotalRevenue)
	}
}

func TestIngestEmptyFileFails(t *testing.T) {
	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{})

	err := ingestCSV(t, orch, "file-1", "")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	st, err := orch.Status(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.StatusFailed || st.Error == "" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestIngestMissingRequiredColumnsFails(t *testing.T) {
	csv := "Country,Device,Revenue\nUS,Mobile,1\n"
	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{})

	err := ingestCSV(t, orch, "file-1", csv)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if _, err := orch.Result(context.Background(), "file-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no result should exist, got %v", err)
	}
}

func TestIngestBatchRetrySplitsOnFailure(t *testing.T) {
	csv := testHeader +
		"2024-01-15,a.com,US,Mobile,Banner,10,10,0,1\n" +
		"2024-01-15,b.com,US,Mobile,Banner,10,10,0,1\n" +
		"2024-01-15,c.com,US,Mobile,Banner,10,10,0,1\n" +
		"2024-01-15,d.com,US,Mobile,Banner,10,10,0,1\n"

	mem := store.NewMemoryStore()
	// Multi-row batches fail; single-row writes succeed. The retry policy
	// must converge on single-row sub-batches and keep every row.
	mem.WriteHook = func(_ string, recs []*models.Record) error {
		if len(recs) > 1 {
			return errors.New("bulk write refused")
		}
		return nil
	}
	orch := newTestOrchestrator(mem, Config{BatchSize: 4, BulkWriteAttempts: 3})

	if err := ingestCSV(t, orch, "file-1", csv); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if got := mem.RowCount("file-1"); got != 4 {
		t.Fatalf("rows written = %d, want 4", got)
	}
	if batches := len(mem.Batches["file-1"]); batches != 4 {
		t.Fatalf("expected 4 single-row batches after splitting, got %d", batches)
	}
}

func TestIngestPersistentWriteFailure(t *testing.T) {
	csv := testHeader +
		"2024-01-15,a.com,US,Mobile,Banner,10,10,0,1\n" +
		"2024-01-15,b.com,US,Mobile,Banner,10,10,0,1\n"

	mem := store.NewMemoryStore()
	mem.WriteHook = func(string, []*models.Record) error {
		return errors.New("store down")
	}
	orch := New(mem, mem, mem, nil, zaptest.NewLogger(t), Config{BatchSize: 2, BulkWriteAttempts: 2})

	err := ingestCSV(t, orch, "file-1", csv)
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}

	st, err := orch.Status(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", st.Status)
	}
	if !strings.Contains(st.Error, "store down") {
		t.Fatalf("status error should carry the cause, got %q", st.Error)
	}
	if _, err := orch.Result(context.Background(), "file-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no result should exist after failure, got %v", err)
	}
}

func TestIngestCancellation(t *testing.T) {
	csv := testHeader +
		"2024-01-15,a.com,US,Mobile,Banner,10,10,0,1\n" +
		"2024-01-15,b.com,US,Mobile,Banner,10,10,0,1\n"

	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := orch.Ingest(ctx, strings.NewReader(csv), "file-1", "file-1.csv", int64(len(csv)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	st, serr := orch.Status(context.Background(), "file-1")
	if serr != nil {
		t.Fatalf("status: %v", serr)
	}
	if st.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", st.Status)
	}
	if _, err := orch.Result(context.Background(), "file-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no partial result may be persisted, got %v", err)
	}
	if got := mem.RowCount("file-1"); got != 0 {
		t.Fatalf("in-flight batch should be discarded, got %d rows", got)
	}
}

func TestIngestProgressMonotonic(t *testing.T) {
	var b strings.Builder
	b.WriteString(testHeader)
	for i := 0; i < 50; i++ {
		b.WriteString("2024-01-15,a.com,US,Mobile,Banner,10,10,0,1\n")
	}
	csv := b.String()

	mem := store.NewMemoryStore()
	orch := newTestOrchestrator(mem, Config{BatchSize: 5, ProgressInterval: time.Nanosecond})

	if err := ingestCSV(t, orch, "file-1", csv); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	history := mem.Statuses["file-1"]
	if len(history) < 3 {
		t.Fatalf("expected intermediate progress snapshots, got %d", len(history))
	}
	last := -1
	for _, st := range history {
		if st.Progress < last {
			t.Fatalf("progress went backwards: %d after %d", st.Progress, last)
		}
		if st.Status == models.StatusProcessing && st.Progress > 99 {
			t.Fatalf("non-terminal progress exceeded 99: %+v", st)
		}
		last = st.Progress
	}
	if final := history[len(history)-1]; final.Status != models.StatusCompleted || final.Progress != 100 {
		t.Fatalf("unexpected final snapshot: %+v", final)
	}
}

func TestValidate(t *testing.T) {
	orch := newTestOrchestrator(store.NewMemoryStore(), Config{MaxUploadSize: 1024})

	if err := orch.Validate("report.csv", 100); err != nil {
		t.Fatalf("valid upload rejected: %v", err)
	}
	if err := orch.Validate("REPORT.CSV", 100); err != nil {
		t.Fatalf("extension match should be case-insensitive: %v", err)
	}

	var cfgErr *ConfigError
	if err := orch.Validate("report.xlsx", 100); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for extension, got %v", err)
	}
	if err := orch.Validate("report.csv", 2048); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for size, got %v", err)
	}
}

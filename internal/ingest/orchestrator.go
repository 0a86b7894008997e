// Package ingest drives the end-to-end pipeline for one uploaded file:
// stream, tokenize, map the header once, normalize per row, fan out to the
// bulk-write batch and the aggregation state, and persist the analytical
// result with a terminal status.
package ingest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/aggregate"
	"github.com/reportstream/reportstream/internal/csvio"
	"github.com/reportstream/reportstream/internal/models"
	"github.com/reportstream/reportstream/internal/observability"
	"github.com/reportstream/reportstream/internal/store"
)

// Config tunes one orchestrator. Zero values fall back to defaults.
type Config struct {
	BatchSize         int
	MaxUploadSize     int64
	SampleSize        int
	ProgressInterval  time.Duration
	BulkWriteTimeout  time.Duration
	BulkWriteAttempts int
	Top               aggregate.TopLimits
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:         1000,
		MaxUploadSize:     200 * 1024 * 1024,
		SampleSize:        20,
		ProgressInterval:  2 * time.Second,
		BulkWriteTimeout:  30 * time.Second,
		BulkWriteAttempts: 3,
		Top:               aggregate.DefaultTopLimits(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = def.MaxUploadSize
	}
	if c.SampleSize <= 0 {
		c.SampleSize = def.SampleSize
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = def.ProgressInterval
	}
	if c.BulkWriteTimeout <= 0 {
		c.BulkWriteTimeout = def.BulkWriteTimeout
	}
	if c.BulkWriteAttempts <= 0 {
		c.BulkWriteAttempts = def.BulkWriteAttempts
	}
	if c.Top == (aggregate.TopLimits{}) {
		c.Top = def.Top
	}
	return c
}

// Orchestrator owns no cross-file state: every Ingest call builds its own
// aggregation state and batch buffer, so files may be ingested concurrently.
type Orchestrator struct {
	rows    store.RowStore
	status  store.StatusStore
	results store.ResultStore
	metrics observability.MetricsRegistry
	log     *zap.Logger
	cfg     Config
}

// New constructs an Orchestrator.
func New(rows store.RowStore, status store.StatusStore, results store.ResultStore, metrics observability.MetricsRegistry, logger *zap.Logger, cfg Config) *Orchestrator {
	if metrics == nil {
		metrics = observability.NewNopRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		rows:    rows,
		status:  status,
		results: results,
		metrics: metrics,
		log:     logger,
		cfg:     cfg.withDefaults(),
	}
}

// Validate rejects an upload before any streaming begins. Violations are
// ConfigError, surfaced synchronously to the caller.
func (o *Orchestrator) Validate(fileName string, size int64) error {
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return &ConfigError{Reason: "only CSV files are supported"}
	}
	if size > o.cfg.MaxUploadSize {
		return &ConfigError{Reason: "file exceeds maximum upload size"}
	}
	return nil
}

// MarkUploading records that an upload has been accepted but not yet
// processed, so status polls that race the background run still resolve.
func (o *Orchestrator) MarkUploading(ctx context.Context, fileID string) error {
	return o.setStatus(ctx, fileID, models.StatusInfo{Status: models.StatusUploading})
}

// Status returns the stored status snapshot for a file identifier.
func (o *Orchestrator) Status(ctx context.Context, fileID string) (*models.StatusInfo, error) {
	return o.status.GetStatus(ctx, fileID)
}

// Result returns the stored analysis result for a file identifier.
func (o *Orchestrator) Result(ctx context.Context, fileID string) (*models.AnalysisResult, error) {
	return o.results.GetResult(ctx, fileID)
}

// Ingest processes one uploaded file end to end. size is the total byte
// length when known (used for progress), or 0. The pipeline is strictly
// demand-driven: one record is pulled, normalized and folded at a time, so
// memory is bounded by one in-flight batch plus the aggregation maps.
//
// On success the result and the completed status are persisted as one
// atomic step. On any unrecoverable error the in-flight batch is discarded,
// a failed status with a human-readable cause is persisted, and batches
// already flushed stay in place for the operator to inspect or clear.
func (o *Orchestrator) Ingest(ctx context.Context, r io.Reader, fileID, fileName string, size int64) error {
	log := o.log.With(zap.String("file_id", fileID), zap.String("file_name", fileName))
	start := time.Now()

	o.metrics.IncActiveIngestions()
	defer o.metrics.DecActiveIngestions()

	if err := o.setStatus(ctx, fileID, models.StatusInfo{Status: models.StatusProcessing}); err != nil {
		log.Warn("initial status write failed", zap.Error(err))
	}

	tok := csvio.NewTokenizer(r)

	header, err := tok.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return o.fail(ctx, fileID, 0, log, &ParseError{Reason: "file is empty"})
		}
		return o.fail(ctx, fileID, 0, log, &ParseError{Reason: "read header: " + err.Error()})
	}
	cols := csvio.BuildColumnMap(header)
	if _, ok := cols[models.FieldDate]; !ok {
		return o.fail(ctx, fileID, 0, log, &ConfigError{Reason: "CSV must contain a date column"})
	}
	if _, ok := cols[models.FieldWebsite]; !ok {
		return o.fail(ctx, fileID, 0, log, &ConfigError{Reason: "CSV must contain a website column"})
	}
	log.Info("header mapped", zap.Int("columns", len(header)), zap.Int("mapped_fields", len(cols)))

	quality := models.NewQualityReport()
	norm := csvio.NewNormalizer(cols, len(header), quality)
	state := aggregate.NewState(o.cfg.SampleSize)
	batch := make([]*models.Record, 0, o.cfg.BatchSize)

	var (
		line          int64 = 1
		lastReport    time.Time
		lastProgress  int
		reportedBytes int64
	)

	for {
		if err := ctx.Err(); err != nil {
			// Cancelled: stop reading, drop the in-flight batch, never
			// persist a partial result.
			return o.fail(ctx, fileID, state.Rows(), log, err)
		}

		row, err := tok.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return o.fail(ctx, fileID, state.Rows(), log, &ParseError{Line: line, Reason: err.Error()})
		}
		line++

		rec, reason := norm.Normalize(row, line)
		if rec == nil {
			o.metrics.IncrementRowsRejected(string(reason))
			continue
		}

		state.Fold(rec)
		batch = append(batch, rec)
		o.metrics.AddRowsProcessed(1)

		if len(batch) >= o.cfg.BatchSize {
			if err := o.flush(ctx, fileID, batch, o.cfg.BulkWriteAttempts, log); err != nil {
				return o.fail(ctx, fileID, state.Rows(), log, err)
			}
			batch = batch[:0]

			// Progress is reported strictly after the batch it describes,
			// and coalesced so the status channel is not overwhelmed.
			if now := time.Now(); now.Sub(lastReport) >= o.cfg.ProgressInterval {
				lastProgress = o.reportProgress(ctx, fileID, state.Rows(), tok.BytesRead(), size, lastProgress, log)
				o.metrics.AddBytesRead(tok.BytesRead() - reportedBytes)
				reportedBytes = tok.BytesRead()
				lastReport = now
			}
		}
	}

	if err := o.flush(ctx, fileID, batch, o.cfg.BulkWriteAttempts, log); err != nil {
		return o.fail(ctx, fileID, state.Rows(), log, err)
	}
	o.metrics.AddBytesRead(tok.BytesRead() - reportedBytes)

	result := state.Result(fileID, fileName, quality, o.cfg.Top)
	final := models.StatusInfo{
		Status:        models.StatusCompleted,
		Progress:      100,
		ProcessedRows: state.Rows(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := o.results.Complete(ctx, fileID, result, final); err != nil {
		return o.fail(ctx, fileID, state.Rows(), log, &WriteError{Op: "result", Err: err})
	}

	o.metrics.IncrementIngestions(string(models.StatusCompleted))
	o.metrics.RecordIngestDuration(time.Since(start))
	log.Info("ingestion completed",
		zap.Int64("rows", state.Rows()),
		zap.Int64("bytes", tok.BytesRead()),
		zap.Int64("quality_issues", quality.Total()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// flush bulk-writes one batch with a per-attempt timeout. A failed batch is
// re-issued as two half batches with the remaining attempt budget before the
// failure is declared, which isolates a poisoned row or shortens a timing-out
// write without abandoning the whole batch.
func (o *Orchestrator) flush(ctx context.Context, fileID string, recs []*models.Record, attempts int, log *zap.Logger) error {
	if len(recs) == 0 {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, o.cfg.BulkWriteTimeout)
	err := o.rows.WriteBatch(wctx, fileID, recs)
	cancel()
	if err == nil {
		o.metrics.IncrementBatchesFlushed()
		return nil
	}

	if attempts <= 1 || ctx.Err() != nil {
		o.metrics.IncrementBatchFailures()
		return &WriteError{Op: "batch", Err: err}
	}

	o.metrics.IncrementBatchRetries()
	log.Warn("bulk write failed, re-issuing in sub-batches",
		zap.Int("batch_size", len(recs)),
		zap.Int("attempts_left", attempts-1),
		zap.Error(err))

	if len(recs) == 1 {
		return o.flush(ctx, fileID, recs, attempts-1, log)
	}
	mid := len(recs) / 2
	if err := o.flush(ctx, fileID, recs[:mid], attempts-1, log); err != nil {
		return err
	}
	return o.flush(ctx, fileID, recs[mid:], attempts-1, log)
}

// reportProgress persists a processing status snapshot and returns the new
// progress value. Progress is byte-based, capped at 99 until the terminal
// write, and never decreases.
func (o *Orchestrator) reportProgress(ctx context.Context, fileID string, rows, bytesRead, size int64, last int, log *zap.Logger) int {
	progress := last
	if size > 0 {
		if p := int(bytesRead * 100 / size); p > progress {
			progress = p
		}
		if progress > 99 {
			progress = 99
		}
	}
	st := models.StatusInfo{
		Status:        models.StatusProcessing,
		Progress:      progress,
		ProcessedRows: rows,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := o.setStatus(ctx, fileID, st); err != nil {
		log.Warn("progress write failed", zap.Error(err))
	}
	return progress
}

// fail persists a failed status with a human-readable cause and returns the
// causing error. Already-flushed batches are left in place: partial
// ingestion stays visible rather than being silently discarded.
func (o *Orchestrator) fail(ctx context.Context, fileID string, rows int64, log *zap.Logger, cause error) error {
	st := models.StatusInfo{
		Status:        models.StatusFailed,
		ProcessedRows: rows,
		Error:         cause.Error(),
		UpdatedAt:     time.Now().UTC(),
	}
	// The cause may be the context's own cancellation; the status write
	// must still go through.
	if err := o.setStatus(context.WithoutCancel(ctx), fileID, st); err != nil {
		log.Error("failed-status write failed", zap.Error(err))
	}
	o.metrics.IncrementIngestions(string(models.StatusFailed))
	log.Error("ingestion failed", zap.Int64("rows", rows), zap.Error(cause))
	return cause
}

func (o *Orchestrator) setStatus(ctx context.Context, fileID string, st models.StatusInfo) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	return o.status.SetStatus(ctx, fileID, st)
}

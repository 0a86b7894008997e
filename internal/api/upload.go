package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/ingest"
	"github.com/reportstream/reportstream/internal/models"
)

// UploadResponse is returned once an upload has been accepted for
// asynchronous processing.
type UploadResponse struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Status   string `json:"status"`
}

// UploadHandler accepts a multipart CSV upload, validates it, and kicks off
// ingestion in the background. The response carries the file identifier the
// client polls /status/{id} with.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "upload"
	const method = "POST"

	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "file field required", http.StatusBadRequest)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.Logger.Warn("failed to close upload", zap.Error(closeErr))
		}
	}()

	if err := s.Orchestrator.Validate(header.Filename, header.Size); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The multipart form's backing files are removed when this handler
	// returns, so the upload is spooled to a file the background run owns.
	spool, err := os.CreateTemp("", "reportstream-upload-*")
	if err != nil {
		s.Logger.Error("failed to create spool file", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	size, err := io.Copy(spool, file)
	if err != nil {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
		s.Logger.Error("failed to spool upload", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
		s.Logger.Error("failed to rewind spool", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	fileID := uuid.NewString()
	fileName := header.Filename

	// Persist the initial status before responding so a poll that races the
	// background run still finds the file.
	if err := s.Orchestrator.MarkUploading(r.Context(), fileID); err != nil {
		s.Logger.Warn("failed to write initial status", zap.String("file_id", fileID), zap.Error(err))
	}

	// Ingestion outlives the request, so it gets its own context. Cancelling
	// the upload request must not abort a run that was already accepted.
	go func() {
		defer func() {
			_ = spool.Close()
			_ = os.Remove(spool.Name())
		}()
		if err := s.Orchestrator.Ingest(context.Background(), spool, fileID, fileName, size); err != nil {
			var cfgErr *ingest.ConfigError
			var parseErr *ingest.ParseError
			switch {
			case errors.As(err, &cfgErr), errors.As(err, &parseErr):
				s.Logger.Warn("ingestion rejected", zap.String("file_id", fileID), zap.Error(err))
			default:
				s.Logger.Error("ingestion failed", zap.String("file_id", fileID), zap.Error(err))
			}
		}
	}()

	s.Metrics.IncrementRequests(endpoint, method, "202")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	s.writeJSON(w, http.StatusAccepted, UploadResponse{
		FileID:   fileID,
		FileName: fileName,
		Status:   string(models.StatusUploading),
	})
}

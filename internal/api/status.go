package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/store"
)

// StatusHandler returns the ingestion status for a file identifier.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "status"
	const method = "GET"

	fileID := mux.Vars(r)["id"]
	st, err := s.Orchestrator.Status(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown file id", http.StatusNotFound)
			return
		}
		s.Logger.Error("status lookup failed", zap.String("file_id", fileID), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	s.writeJSON(w, http.StatusOK, st)
}

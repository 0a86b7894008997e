package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/store"
)

// ResultHandler returns the analysis result for a completed ingestion.
func (s *Server) ResultHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "result"
	const method = "GET"

	fileID := mux.Vars(r)["id"]
	res, err := s.Orchestrator.Result(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "result not available", http.StatusNotFound)
			return
		}
		s.Logger.Error("result lookup failed", zap.String("file_id", fileID), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	s.writeJSON(w, http.StatusOK, res)
}

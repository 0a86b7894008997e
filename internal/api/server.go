package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/config"
	"github.com/reportstream/reportstream/internal/ingest"
	"github.com/reportstream/reportstream/internal/middleware"
	"github.com/reportstream/reportstream/internal/observability"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger       *zap.Logger
	Orchestrator *ingest.Orchestrator
	Metrics      observability.MetricsRegistry
	Config       config.Config
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, orch *ingest.Orchestrator, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNopRegistry()
	}
	return &Server{
		Logger:       logger,
		Orchestrator: orch,
		Metrics:      metrics,
		Config:       cfg,
	}
}

// Routes builds the router for the ingestion service.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithAccessLog(s.Logger))
	r.HandleFunc("/upload", s.UploadHandler).Methods("POST")
	r.HandleFunc("/status/{id}", s.StatusHandler).Methods("GET")
	r.HandleFunc("/result/{id}", s.ResultHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("failed to encode response", zap.Error(err))
	}
}

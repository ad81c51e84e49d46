// Package api exposes the ingestion service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/repoingest/internal/knowledge"
	"github.com/raphaelgruber/repoingest/internal/metrics"
	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/service"
	"github.com/raphaelgruber/repoingest/internal/store"
)

// Ingester is the part of the ingestion service served over HTTP.
type Ingester interface {
	Submit(ctx context.Context, req models.IngestRequest) (string, error)
	Cancel(jobID string) bool
	GetStatus(ctx context.Context, jobID string) (models.IngestionJob, error)
	ListJobs(ctx context.Context) ([]models.IngestionJob, error)
	ListRepositories(ctx context.Context) ([]models.RepositoryRecord, error)
	Metrics() *metrics.Collector
}

// SyncStatuser looks up knowledge base sync jobs.
type SyncStatuser interface {
	SyncStatus(ctx context.Context, syncID string) (knowledge.SyncStatus, error)
}

// DefaultWatchInterval is how often a watch stream polls job status.
const DefaultWatchInterval = 500 * time.Millisecond

// Server routes HTTP requests to the ingestion service.
type Server struct {
	svc           Ingester
	index         SyncStatuser
	logger        *slog.Logger
	watchInterval time.Duration
	upgrader      websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncStatus enables GET /api/sync/{id}.
func WithSyncStatus(index SyncStatuser) Option {
	return func(s *Server) { s.index = index }
}

// WithWatchInterval sets the status polling interval for watch streams.
func WithWatchInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.watchInterval = d
		}
	}
}

// New creates an HTTP server for svc.
func New(svc Ingester, opts ...Option) *Server {
	s := &Server{
		svc:           svc,
		logger:        slog.Default(),
		watchInterval: DefaultWatchInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/ingest/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/ingest/{id}/watch", s.handleWatch)
	mux.HandleFunc("DELETE /api/ingest/{id}", s.handleCancel)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/repositories", s.handleRepositories)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/sync/{id}", s.handleSyncStatus)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return LoggingMiddleware(s.logger)(mux)
}

// IngestResponse is returned by POST /api/ingest.
type IngestResponse struct {
	JobID   string           `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", service.ErrInvalidRequest, err))
		return
	}

	jobID, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, IngestResponse{
		JobID:   jobID,
		Status:  models.JobStatusPending,
		Message: "ingestion started",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.svc.GetStatus(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.svc.Cancel(id) {
		s.writeJSON(w, http.StatusConflict, ErrorResponse{Error: "job is not running"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.ListJobs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(jobs))
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := s.svc.ListRepositories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(repos))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Metrics().Snapshot())
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.writeError(w, knowledge.ErrNotConfigured)
		return
	}
	st, err := s.index.SyncStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// handleWatch streams the job as JSON over a websocket each time it
// changes, and closes the stream once the job is terminal.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.svc.GetStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Reader loop detects client disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	var last []byte
	for {
		payload, err := json.Marshal(job)
		if err != nil {
			s.logger.Error("encode job", "job_id", id, "error", err)
			return
		}
		if string(payload) != string(last) {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("watch client gone", "job_id", id, "error", err)
				return
			}
			last = payload
		}
		if job.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}

		job, err = s.svc.GetStatus(r.Context(), id)
		if err != nil {
			s.logger.Warn("watch status lookup failed", "job_id", id, "error", err)
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPoolOverloaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, knowledge.ErrNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

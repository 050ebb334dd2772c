package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"posada/internal/availability"
	"posada/internal/config"
	"posada/internal/database"
	"posada/internal/holds"
	"posada/internal/metrics"
	"posada/internal/orchestrator"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the reservation service over HTTP.
type HTTPServer struct {
	cfg       config.Config
	db        *database.DB
	holds     *holds.Manager
	avail     *availability.Aggregator
	confirmer *orchestrator.Confirmer
	canceller *orchestrator.Canceller
	server    *http.Server
	auth      *HTTPAuth
	log       zerolog.Logger
}

func NewHTTPServer(
	cfg config.Config,
	db *database.DB,
	holdManager *holds.Manager,
	aggregator *availability.Aggregator,
	confirmer *orchestrator.Confirmer,
	canceller *orchestrator.Canceller,
	logger zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:       cfg,
		db:        db,
		holds:     holdManager,
		avail:     aggregator,
		confirmer: confirmer,
		canceller: canceller,
		log:       logger.With().Str("component", "http").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg.API)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/holds", srv.handleHolds)
	mux.HandleFunc("/api/v1/holds/", srv.handleHoldSubtree)
	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/", srv.handleReservationByID)
	mux.HandleFunc("/api/v1/assignments", srv.handleAssignments)
	mux.HandleFunc("/api/v1/assignments/", srv.handleAssignmentSubtree)
	mux.HandleFunc("/api/v1/integration/reservations/confirm", srv.handleConfirm)
	mux.HandleFunc("/api/v1/integration/reservations/cancel", srv.handleCancel)
	mux.HandleFunc("/api/v1/rooms/", srv.handleRooms)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler exposes the fully wrapped handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

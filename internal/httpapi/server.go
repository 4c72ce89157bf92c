// Package httpapi serves the difficulty service to browser games running on
// the same machine.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/adaptive"
	"github.com/abhisek/skilltune/internal/logging"
)

// Server exposes an adaptive.DifficultyService over HTTP.
type Server struct {
	svc     adaptive.DifficultyService
	log     logrus.FieldLogger
	origins []string
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithVersion is reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server for svc.
func New(svc adaptive.DifficultyService, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		log:     logging.Discard(),
		origins: []string{"*"},
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with CORS, request ids and access
// logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, s.accessLog)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/knowledge/{studentId}/{skillId}", s.getKnowledge).Methods(http.MethodGet)
	api.HandleFunc("/knowledge/{studentId}/{skillId}/observations", s.postObservation).Methods(http.MethodPost)
	api.HandleFunc("/knowledge", s.resetKnowledge).Methods(http.MethodDelete)
	api.HandleFunc("/difficulty/{studentId}/{gameId}", s.getDifficulty).Methods(http.MethodGet)
	api.HandleFunc("/difficulty/{studentId}/{gameId}", s.putDifficulty).Methods(http.MethodPut)
	api.HandleFunc("/session/{studentId}/{gameId}", s.startSession).Methods(http.MethodGet)
	api.HandleFunc("/interactions", s.postInteraction).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.sync).Methods(http.MethodPost)
	api.HandleFunc("/guests", s.newGuest).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	// Subrouters do not inherit the parent's handlers.
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.MethodNotAllowedHandler = notAllowed
	api.MethodNotAllowedHandler = notAllowed

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http api stopped")
	return nil
}

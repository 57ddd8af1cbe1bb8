package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pbaille/wayfind/internal/domain"
	"github.com/pbaille/wayfind/internal/journey"
	"github.com/pbaille/wayfind/internal/observability"
)

// Server handles HTTP requests for the journey API
type Server struct {
	svc     *journey.Service
	metrics *observability.Metrics
	logger  *zap.Logger
	origins []string
	router  chi.Router
}

// Options configure a Server
type Options struct {
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

// New creates a new API server
func New(svc *journey.Service, opts Options) *Server {
	s := &Server{
		svc:     svc,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		origins: opts.AllowedOrigins,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger, s.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Post("/topics", s.proposeTopic)

	r.Route("/journeys", func(r chi.Router) {
		r.Get("/", s.listJourneys)
		r.Post("/", s.startJourney)
		r.Route("/{journeyID}", func(r chi.Router) {
			r.Get("/", s.getJourney)
			r.Delete("/", s.deleteJourney)
			r.Post("/open", s.openJourney)
			r.Get("/graph", s.journeyGraph)
			r.Post("/explorations", s.createExploration)
			r.Post("/nodes", s.addManualNode)
			r.Get("/notifications", s.notifications)
		})
	})

	r.Route("/nodes/{nodeID}", func(r chi.Router) {
		r.Get("/", s.getNode)
		r.Get("/dialog", s.getDialog)
		r.Post("/question", s.askQuestion)
		r.Post("/reflections", s.addReflection)
	})

	r.Route("/words", func(r chi.Router) {
		r.Get("/", s.listWords)
		r.Post("/", s.addWord)
		r.Put("/{word}", s.updateWord)
		r.Delete("/{word}", s.removeWord)
	})

	r.Get("/stats", s.stats)
	r.Get("/export", s.exportData)
	r.Post("/import", s.importData)

	return r
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors to statuses. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoJourney):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyAsked), errors.Is(err, domain.ErrAnswerRecorded),
		errors.Is(err, domain.ErrNodeHidden):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbiddenTopic):
		return http.StatusUnprocessableEntity
	case domain.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

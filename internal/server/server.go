package server

import (
	"context"
	"errors"
	"humidcast/internal/config"
	"humidcast/internal/models"
	"humidcast/internal/scheduler"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshots is the read side of the prediction cache
type Snapshots interface {
	ReadAll() models.Snapshot
	Get(sensorID string) (models.Result, bool)
}

// StatusSource reports what the refresh loop is doing
type StatusSource interface {
	State() scheduler.Status
}

// HistoryStore serves past results for one sensor
type HistoryStore interface {
	SensorHistory(ctx context.Context, sensorID string, limit int) ([]models.Result, error)
}

// Server is the read-only HTTP facade over the prediction cache
type Server struct {
	cfg     config.Server
	cache   Snapshots
	status  StatusSource
	history HistoryStore
	logger  *slog.Logger
	router  chi.Router
}

// NewServer creates the HTTP facade. history may be nil, in which case the
// history route answers 404.
func NewServer(cfg config.Server, cache Snapshots, status StatusSource, history HistoryStore, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		cache:   cache,
		status:  status,
		history: history,
		logger:  logger,
		router:  chi.NewRouter(),
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(CORS(cfg.CORSOrigin))
	s.router.Use(Logger(logger))
	s.router.Use(chimw.Recoverer)

	// Register routes
	s.router.Get("/", s.handleWelcome)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/predict_all", s.handlePredictAll)
	s.router.Get("/predictions/{sensorID}", s.handlePrediction)
	s.router.Get("/predictions/{sensorID}/history", s.handleHistory)
	s.router.Get("/status", s.handleStatus)
	s.router.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

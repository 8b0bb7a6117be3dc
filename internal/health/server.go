package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/speedwagon-io/co2hook/internal/lib/logger/sl"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

type Server struct {
	log      *slog.Logger
	address  string
	server   *http.Server
	checkers []HealthChecker
	mounts   []func(chi.Router)
	mu       sync.RWMutex
}

func NewServer(log *slog.Logger, address string) *Server {
	return &Server{
		log:      log,
		address:  address,
		checkers: make([]HealthChecker, 0),
	}
}

// Mount registers extra routes served alongside the health endpoints.
// It must be called before Start.
func (s *Server) Mount(fn func(r chi.Router)) {
	s.mounts = append(s.mounts, fn)
}

func (s *Server) AddChecker(checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	for _, mount := range s.mounts {
		mount(r)
	}

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	s.log.Info("starting health server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("health server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make([]HealthChecker, len(s.checkers))
	copy(checkers, s.checkers)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     StatusHealthy,
		Components: make([]ComponentHealth, 0, len(checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for _, checker := range checkers {
		status, message := checker.Check(ctx)
		response.Components = append(response.Components, ComponentHealth{
			Name:    checker.Name(),
			Status:  status,
			Message: message,
		})

		if status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type AcquisitionHealthChecker struct {
	lastFunc func() (time.Time, error)
}

func NewAcquisitionHealthChecker(lastFunc func() (time.Time, error)) *AcquisitionHealthChecker {
	return &AcquisitionHealthChecker{lastFunc: lastFunc}
}

func (c *AcquisitionHealthChecker) Name() string {
	return "acquisition"
}

// Check reports degraded after a failed acquisition. A sensor that has not
// been read yet is considered healthy.
func (c *AcquisitionHealthChecker) Check(ctx context.Context) (Status, string) {
	at, err := c.lastFunc()
	if at.IsZero() {
		return StatusHealthy, "no acquisition yet"
	}
	if err != nil {
		return StatusDegraded, err.Error()
	}
	return StatusHealthy, ""
}

type PublisherHealthChecker struct {
	connectedFunc func() bool
}

func NewPublisherHealthChecker(connectedFunc func() bool) *PublisherHealthChecker {
	return &PublisherHealthChecker{connectedFunc: connectedFunc}
}

func (c *PublisherHealthChecker) Name() string {
	return "mqtt"
}

func (c *PublisherHealthChecker) Check(ctx context.Context) (Status, string) {
	if !c.connectedFunc() {
		return StatusDegraded, "not connected to broker"
	}
	return StatusHealthy, ""
}

// Package server provides the HTTP control surface: trigger runs, watch
// their progress, and check store health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wchen/gpuharvest/internal/run"
	"github.com/wchen/gpuharvest/internal/server/ratelimit"
)

// Controller is the slice of the runner the server needs.
type Controller interface {
	Launch(ctx context.Context, mode run.Mode, gpuName string) (uuid.UUID, error)
	Status() (run.State, *run.Summary)
}

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP control surface.
type Server struct {
	httpServer *http.Server
	controller Controller
	store      Pinger
	limiter    *ratelimit.Limiter
}

// New wires the routes. Run triggers share a per-client rate limit on top of
// the runner's single-flight admission.
func New(port int, controller Controller, store Pinger) *Server {
	s := &Server{
		controller: controller,
		store:      store,
		limiter:    ratelimit.NewLimiter(10, time.Minute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /run-scraper", s.withRateLimit(s.handleRunScraper))
	mux.HandleFunc("GET /run-scraper-selected", s.withRateLimit(s.handleRunSelected))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start listens until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// Handler exposes the routing stack for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "GPU harvester control surface. See /health, /status, /run-scraper, /run-scraper-selected.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, fmt.Sprintf("database unreachable: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "message": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state, summary := s.controller.Status()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"state":      state,
		"is_running": state == run.StateRunning,
		"run":        summary,
	})
}

// handleRunScraper starts a crawl or update run. mode is one of default,
// full, or incremental; empty means default.
func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	mode, ok := run.ParseMode(r.URL.Query().Get("mode"))
	if !ok || mode == run.ModeSelected {
		s.errorResponse(w, http.StatusBadRequest, "mode must be one of: default, full, incremental")
		return
	}
	s.launch(w, mode, "")
}

// handleRunSelected starts a crawl of a single named GPU.
func (s *Server) handleRunSelected(w http.ResponseWriter, r *http.Request) {
	gpuName := r.URL.Query().Get("gpu_name")
	if gpuName == "" {
		s.errorResponse(w, http.StatusBadRequest, "gpu_name is required")
		return
	}
	s.launch(w, run.ModeSelected, gpuName)
}

func (s *Server) launch(w http.ResponseWriter, mode run.Mode, gpuName string) {
	// The run must outlive this request.
	runID, err := s.controller.Launch(context.Background(), mode, gpuName)
	if errors.Is(err, run.ErrRunActive) {
		s.errorResponse(w, http.StatusConflict, "a run is already in progress")
		return
	}
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": fmt.Sprintf("run started (mode=%s)", mode),
		"run_id":  runID,
	})
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientID(r)) {
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		s.limiter.Prune(time.Hour)
		next(w, r)
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]any{"success": false, "message": message})
}

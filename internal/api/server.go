// Package api implements the HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/agent"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/buildinfo"
	"github.com/taskdeck/taskdeck/internal/store"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	store   *store.Store
	loop    *agent.Loop
	auth    *auth.Manager
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, st *store.Store, loop *agent.Loop, am *auth.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		store:   st,
		loop:    loop,
		auth:    am,
		logger:  logger,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth endpoints (no token required)
	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)

	// Task endpoints
	mux.HandleFunc("POST /v1/tasks", s.authed(s.handleTaskCreate))
	mux.HandleFunc("GET /v1/tasks", s.authed(s.handleTaskList))
	mux.HandleFunc("GET /v1/tasks/notifications", s.authed(s.handleTaskNotifications))
	mux.HandleFunc("GET /v1/tasks/{id}", s.authed(s.handleTaskGet))
	mux.HandleFunc("PUT /v1/tasks/{id}", s.authed(s.handleTaskUpdate))
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.authed(s.handleTaskDelete))
	mux.HandleFunc("PATCH /v1/tasks/{id}/toggle", s.authed(s.handleTaskToggle))

	// Conversation and chat endpoints
	mux.HandleFunc("POST /v1/conversations", s.authed(s.handleConversationCreate))
	mux.HandleFunc("GET /v1/conversations", s.authed(s.handleConversationList))
	mux.HandleFunc("PATCH /v1/conversations/{id}", s.authed(s.handleConversationRename))
	mux.HandleFunc("DELETE /v1/conversations/{id}", s.authed(s.handleConversationDelete))
	mux.HandleFunc("GET /v1/conversations/{id}/messages", s.authed(s.handleMessageList))
	mux.HandleFunc("POST /v1/conversations/{id}/messages", s.authed(s.handleChatTurn))

	// Health endpoints
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // model round trips can be slow
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// authed wraps a handler with bearer-token authentication. The token's
// subject is passed through as the acting user id.
func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.errorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.auth.Verify(token)
		if err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r, userID)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"name":    "Taskdeck",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      *store.User `json:"user"`
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.errorResponse(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if err == auth.ErrPasswordTooLong {
			s.errorResponse(w, http.StatusBadRequest, "Password cannot be longer than 72 bytes")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, hash, req.Name)
	if err != nil {
		if err == store.ErrEmailTaken {
			s.errorResponse(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.logger.Error("create user failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := s.auth.Issue(user.ID)
	if err != nil {
		s.logger.Error("issue token failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, authResponse{User: user, Token: token, TokenType: "bearer"}, s.logger)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.errorResponse(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response whether the email or the password is wrong.
		s.errorResponse(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := s.auth.Issue(user.ID)
	if err != nil {
		s.logger.Error("issue token failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, authResponse{User: user, Token: token, TokenType: "bearer"}, s.logger)
}

// handleLogout exists for client symmetry. Tokens are stateless, so
// logging out is discarding the token client-side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"success": true,
		"message": "Successfully logged out",
	}, s.logger)
}

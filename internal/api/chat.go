package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/store"
)

type conversationCreateRequest struct {
	Title string `json:"title"`
}

type conversationRenameRequest struct {
	Title string `json:"title"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req conversationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = "New Conversation"
	}

	conv, err := s.store.CreateConversation(r.Context(), userID, req.Title)
	if err != nil {
		s.logger.Error("create conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{
		"success":         true,
		"message":         "Conversation created successfully",
		"conversation_id": conv.ID,
	}, s.logger)
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request, userID string) {
	convs, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, map[string]any{"conversations": convs}, s.logger)
}

func (s *Server) handleConversationRename(w http.ResponseWriter, r *http.Request, userID string) {
	conversationID, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	var req conversationRenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := s.store.UpdateConversationTitle(r.Context(), conversationID, userID, req.Title); err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Conversation not found")
			return
		}
		s.logger.Error("rename conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update conversation")
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"message": "Conversation title updated successfully",
	}, s.logger)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request, userID string) {
	conversationID, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteConversation(r.Context(), conversationID, userID); err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Conversation not found")
			return
		}
		s.logger.Error("delete conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"message": "Conversation and its messages deleted successfully",
	}, s.logger)
}

func (s *Server) handleMessageList(w http.ResponseWriter, r *http.Request, userID string) {
	conversationID, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	// Ownership check before exposing messages.
	if _, err := s.store.GetConversation(r.Context(), conversationID, userID); err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Conversation not found")
			return
		}
		s.logger.Error("load conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		s.logger.Error("list messages failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, map[string]any{"messages": msgs}, s.logger)
}

// handleChatTurn runs one agent turn against a conversation.
func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request, userID string) {
	conversationID, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	// Ownership check before any model call.
	if _, err := s.store.GetConversation(r.Context(), conversationID, userID); err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Conversation not found")
			return
		}
		s.logger.Error("load conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	result, err := s.loop.Process(r.Context(), conversationID, userID, req.Message)
	if err != nil {
		s.logger.Error("agent turn failed", "error", err, "conversation_id", conversationID)
		s.errorResponse(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, chatResponse{
		Success:        result.Success,
		Response:       result.Response,
		ConversationID: conversationID,
	}, s.logger)
}

// conversationID extracts and validates the {id} path segment. A
// malformed identifier is rejected before any store or model work.
func (s *Server) conversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid conversation ID format")
		return "", false
	}
	return id, true
}

// Package handlers contains the REST endpoints for the assistant.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ixoralabs/booking-assistant/internal/conversation"
	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// ConversationHandler serves the conversation REST API.
type ConversationHandler struct {
	svc    conversation.Service
	jobs   conversation.JobRecorder
	logger *logging.Logger
}

// NewConversationHandler builds the handler. jobs may be nil when job
// status persistence is disabled.
func NewConversationHandler(svc conversation.Service, jobs conversation.JobRecorder, logger *logging.Logger) *ConversationHandler {
	if svc == nil {
		panic("handlers: conversation service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationHandler{svc: svc, jobs: jobs, logger: logger}
}

type startConversationRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type conversationResponse struct {
	ConversationID string    `json:"conversation_id"`
	Message        string    `json:"message"`
	Stage          string    `json:"stage,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// StartConversation handles POST /v1/conversations.
func (h *ConversationHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	resp, err := h.svc.StartConversation(r.Context(), conversation.StartRequest{
		ConversationID: req.ConversationID,
		Channel:        conversation.ChannelAPI,
	})
	if err != nil {
		h.logger.Error("start conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start conversation")
		return
	}

	writeJSON(w, http.StatusCreated, toConversationResponse(resp))
}

// ProcessMessage handles POST /v1/conversations/{conversationID}/messages.
func (h *ConversationHandler) ProcessMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := h.svc.ProcessMessage(r.Context(), conversation.MessageRequest{
		ConversationID: conversationID,
		Message:        req.Message,
		Channel:        conversation.ChannelAPI,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "conversation timed out")
			return
		}
		h.logger.Error("process message failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, toConversationResponse(resp))
}

// GetHistory handles GET /v1/conversations/{conversationID}/history.
func (h *ConversationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	history, err := h.svc.GetHistory(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("get history failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"messages":        history,
	})
}

// GetJob handles GET /v1/jobs/{jobID}.
func (h *ConversationHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusNotFound, "job tracking is not enabled")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, conversation.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("get job failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func toConversationResponse(resp *conversation.Response) conversationResponse {
	return conversationResponse{
		ConversationID: resp.ConversationID,
		Message:        resp.Message,
		Stage:          string(resp.Stage),
		Timestamp:      resp.Timestamp,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Package api exposes the conversational engine over HTTP and MCP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jesamkim/aws-strands-agents-chatbot/agent"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
	"github.com/jesamkim/aws-strands-agents-chatbot/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	// maxIterationsLimit bounds per-request iteration overrides.
	maxIterationsLimit = 10
)

// Server serves the chat engine over HTTP.
type Server struct {
	engine *agent.Engine
	store  storage.ConversationStorage
	logger *log.Logger
}

// NewServer creates an HTTP server around an engine and a conversation store.
func NewServer(engine *agent.Engine, store storage.ConversationStorage) *Server {
	return &Server{
		engine: engine,
		store:  store,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "api"}),
	}
}

// WithLogger replaces the server's logger. Returns the server for chaining.
func (s *Server) WithLogger(logger *log.Logger) *Server {
	s.logger = logger
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth)
	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/sessions/{sessionID}", s.handleGetSession)
	r.Delete("/v1/sessions/{sessionID}", s.handleDeleteSession)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type chatRequest struct {
	SessionID     string `json:"session_id,omitempty"`
	Message       string `json:"message"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	IncludeTrace  bool   `json:"include_trace,omitempty"`
}

type chatResponse struct {
	SessionID         string             `json:"session_id"`
	Content           string             `json:"content"`
	Iterations        int                `json:"iterations"`
	TerminationReason string             `json:"termination_reason"`
	Citations         []int              `json:"citations,omitempty"`
	TokenUsage        model.TokenUsage   `json:"token_usage"`
	ExecutionMs       int64              `json:"execution_ms"`
	Trace             []model.StepRecord `json:"trace,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
		return
	}
	if req.MaxIterations < 0 || req.MaxIterations > maxIterationsLimit {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "max_iterations must be between 1 and %d", maxIterationsLimit)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := s.store.Load(r.Context(), sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "storage_error", "failed to load session: %v", err)
		return
	}

	engine := s.engine
	if req.MaxIterations > 0 {
		engine = engine.WithMaxIterations(req.MaxIterations)
	}

	res := engine.Run(r.Context(), req.Message, history)

	now := time.Now()
	history = append(history,
		model.ConversationTurn{Role: model.RoleUser, Content: req.Message, Timestamp: now},
		model.ConversationTurn{Role: model.RoleAssistant, Content: res.Content, Timestamp: now},
	)
	// The answer is already computed; a persistence failure only costs
	// session continuity, so it degrades to a warning.
	if err := s.store.Save(r.Context(), sessionID, history); err != nil {
		s.logger.Warn("failed to persist session", "session_id", sessionID, "error", err)
	}

	resp := chatResponse{
		SessionID:         sessionID,
		Content:           res.Content,
		Iterations:        res.IterationsUsed,
		TerminationReason: res.TerminationReason,
		Citations:         res.CitationsUsed,
		TokenUsage:        res.TokenUsage,
		ExecutionMs:       res.ExecutionTime.Milliseconds(),
	}
	if req.IncludeTrace {
		resp.Trace = res.Trace
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionListResponse struct {
	Sessions []string `json:"sessions"`
}

type sessionResponse struct {
	SessionID string                   `json:"session_id"`
	Turns     []model.ConversationTurn `json:"turns"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "storage_error", "failed to list sessions: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	exists, err := s.store.Exists(r.Context(), sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "storage_error", "failed to check session: %v", err)
		return
	}
	if !exists {
		httpError(w, http.StatusNotFound, "not_found", "session %q does not exist", sessionID)
		return
	}

	turns, err := s.store.Load(r.Context(), sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "storage_error", "failed to load session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sessionID, Turns: turns})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// Idempotent: deleting an absent session is not an error
	if err := s.store.Delete(r.Context(), sessionID); err != nil {
		httpError(w, http.StatusInternalServerError, "storage_error", "failed to delete session: %v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

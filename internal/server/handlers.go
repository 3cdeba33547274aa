package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/friday_assistant/internal/assistant"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	defaultDays      = 7
)

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	assistant.Reply
}

type addMemoryRequest struct {
	Type       string `json:"memory_type"`
	Content    string `json:"content"`
	Importance int    `json:"importance,omitempty"`
}

type personalityResponse struct {
	Traits      map[memory_store.Trait]float64 `json:"traits"`
	Description string                         `json:"description"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	id, session := s.sessions.get(req.SessionID)
	reply, err := session.Respond(r.Context(), req.Message)
	if err != nil {
		s.internalError(w, r, "chat failed", err)
		return
	}
	if !reply.Continue {
		s.sessions.drop(id)
	}
	s.writeJSON(w, r, http.StatusOK, chatResponse{SessionID: id, Reply: reply})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.drop(chi.URLParam(r, "sessionID")) {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	var (
		memories []memory_store.Memory
		err      error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		memories, err = s.cfg.Store.FindMemories(r.Context(), q, limit)
	} else {
		filter := memory_store.MemoryFilter{Limit: limit}
		if t := r.URL.Query().Get("type"); t != "" {
			if filter.Type, err = memory_store.ParseMemoryType(t); err != nil {
				s.writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
		}
		memories, err = s.cfg.Store.GetMemories(r.Context(), filter)
	}
	if err != nil {
		s.internalError(w, r, "list memories failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(memories))
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, r, http.StatusBadRequest, "content is required")
		return
	}
	memoryType, err := memory_store.ParseMemoryType(req.Type)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.cfg.Store.AddMemory(r.Context(), memoryType, strings.TrimSpace(req.Content), req.Importance)
	if err != nil {
		s.internalError(w, r, "add memory failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid memory id")
		return
	}
	switch err := s.cfg.Store.DeleteMemory(r.Context(), id); {
	case errors.Is(err, memory_store.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "memory not found")
	case err != nil:
		s.internalError(w, r, "delete memory failed", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePersonality(w http.ResponseWriter, r *http.Request) {
	traits, err := s.cfg.Store.GetPersonalityTraits(r.Context())
	if err != nil {
		s.internalError(w, r, "get personality failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, personalityResponse{
		Traits:      traits,
		Description: memory_store.DescribeTraits(traits),
	})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.cfg.Store.GetLearnedPreferences(r.Context(), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		s.internalError(w, r, "get preferences failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(prefs))
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.cfg.Store.GetCorrections(r.Context(), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		s.internalError(w, r, "get lessons failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(lessons))
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.cfg.Store.GetRecentSummaries(r.Context(), queryInt(r, "days", defaultDays))
	if err != nil {
		s.internalError(w, r, "get summaries failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(summaries))
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	var (
		turns []memory_store.ConversationTurn
		err   error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		turns, err = s.cfg.Store.SearchConversations(r.Context(), q, limit)
	} else {
		turns, err = s.cfg.Store.GetRecentConversations(r.Context(), limit)
	}
	if err != nil {
		s.internalError(w, r, "get conversations failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(turns))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Store.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, "get stats failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Backups == nil {
		s.writeError(w, r, http.StatusNotImplemented, "backups are not configured")
		return
	}
	name, err := s.cfg.Backups.Snapshot(r.Context(), s.cfg.Store, s.cfg.Clock())
	if err != nil {
		s.internalError(w, r, "backup failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"backup": name})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.GetLoggerFromContext(r.Context(), s.log).Error("Failed to encode response", logger.ErrorField(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.GetLoggerFromContext(r.Context(), s.log).Error(msg,
		logger.StringField("http_path", r.URL.Path),
		logger.ErrorField(err),
	)
	s.writeError(w, r, http.StatusInternalServerError, msg)
}

// queryInt reads a positive integer query parameter, clamped to maxListLimit.
func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, maxListLimit)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

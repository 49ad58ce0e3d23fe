package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/DoorwiseAI/doorwise-mvp/engine/agent"
	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
	"github.com/DoorwiseAI/doorwise-mvp/engine/orchestrator"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/metrics"
)

type handlers struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger

	chatTotal   *metrics.Counter
	chatErrors  *metrics.Counter
	chatSeconds *metrics.Histogram
	searchTotal *metrics.Counter
}

func newHandlers(orch *orchestrator.Orchestrator, reg *metrics.Registry, logger *slog.Logger) *handlers {
	return &handlers{
		orch:        orch,
		logger:      logger,
		chatTotal:   reg.Counter("doorwise_chat_requests_total", "Chat turns handled."),
		chatErrors:  reg.Counter("doorwise_chat_errors_total", "Chat turns that failed."),
		chatSeconds: reg.Histogram("doorwise_chat_duration_seconds", "Chat turn latency.", nil),
		searchTotal: reg.Counter("doorwise_search_requests_total", "Raw search requests handled."),
	}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	SessionID string           `json:"session_id"`
	Answer    string           `json:"answer"`
	Slots     memory.Slots     `json:"slots"`
	Agents    []agent.Response `json:"agents"`
	Degraded  bool             `json:"degraded"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.chatTotal.Inc()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.orch.HandleTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.chatErrors.Inc()
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, domain.ErrInvalidQuery),
			errors.Is(err, domain.ErrQueryTooLong), errors.Is(err, domain.ErrQueryInjection):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("chat turn failed", "session", req.SessionID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	h.chatSeconds.Since(start)

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Answer:    result.Answer,
		Slots:     result.Slots,
		Agents:    result.Responses,
		Degraded:  result.Degraded,
	})
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	DoorCategory string `json:"door_category,omitempty"`
	DoorType     string `json:"door_type,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// SearchHit is one retrieved passage with provenance.
type SearchHit struct {
	ChunkID    string               `json:"chunk_id"`
	Text       string               `json:"text"`
	Score      float64              `json:"score"`
	Retrievers []string             `json:"retrievers"`
	Metadata   domain.ChunkMetadata `json:"metadata"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	h.searchTotal.Inc()

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	filter := domain.Filter{
		DoorCategory: domain.DoorCategory(req.DoorCategory),
		DoorType:     domain.DoorType(req.DoorType),
		ContentType:  domain.ContentType(req.ContentType),
	}
	results, err := h.orch.Search(r.Context(), req.Query, req.TopK, filter)
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			writeError(w, http.StatusServiceUnavailable, "retrieval unavailable")
			return
		}
		if errors.Is(err, domain.ErrInvalidQuery) || errors.Is(err, domain.ErrQueryTooLong) || errors.Is(err, domain.ErrQueryInjection) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("search failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hits := make([]SearchHit, len(results))
	for i, res := range results {
		retrievers := make([]string, len(res.Retrievers))
		for j, k := range res.Retrievers {
			retrievers[j] = string(k)
		}
		hits[i] = SearchHit{
			ChunkID:    res.ChunkID,
			Text:       res.Text,
			Score:      res.FusedScore,
			Retrievers: retrievers,
			Metadata:   res.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// HistoryResponse is the JSON response for GET /api/history/{session_id}.
type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []memory.Turn `json:"turns"`
	Slots     memory.Slots  `json:"slots"`
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	sess, err := h.orch.GetHistory(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("history load failed", "session", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		Turns:     sess.Turns,
		Slots:     sess.Slots,
	})
}

func (h *handlers) clearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if err := h.orch.ClearHistory(r.Context(), sessionID); err != nil {
		h.logger.Error("history clear failed", "session", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "session_id": sessionID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

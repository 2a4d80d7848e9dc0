// Package api exposes the HTTP and MCP surfaces of the tutoring service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gurukit/gurukit/internal/composer"
	"github.com/gurukit/gurukit/internal/observability"
	"github.com/gurukit/gurukit/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Answerer resolves one question into a bundle. Satisfied by *pipeline.Answerer.
type Answerer interface {
	Answer(ctx context.Context, userID, question, modelChoice string) composer.AnswerBundle
}

// Evictor triggers a manual cache sweep. Satisfied by *cache.Store.
type Evictor interface {
	EvictExpired() (int64, error)
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

// StudentRequest is the body of PUT /v1/students/{id}.
type StudentRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Standard string `json:"standard"`
}

// AppDeps holds the dependencies of the HTTP surface.
type AppDeps struct {
	Store    *storage.Store
	Answerer Answerer
	Evictor  Evictor
	Token    string
}

// NewAppHandler builds the chi router for the service: open health and
// metrics endpoints plus the bearer-protected /v1 API.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/ask", handleAsk(deps))
		r.Get("/history", handleHistory(deps))
		r.Put("/students/{id}", handlePutStudent(deps))
		r.Get("/students/{id}", handleGetStudent(deps))
		r.Post("/cache/evict", handleEvict(deps))
	})

	return r
}

func handleAsk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		bundle := deps.Answerer.Answer(r.Context(), req.UserID, req.Question, req.Model)
		writeJSON(w, bundle)
	}
}

func handleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		turns, err := deps.Store.GetRecentTurns(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load history: %v", err)
			return
		}
		if turns == nil {
			turns = []storage.ConversationTurn{}
		}
		writeJSON(w, turns)
	}
}

func handlePutStudent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req StudentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		student := storage.Student{
			UserID:   id,
			Name:     req.Name,
			Age:      req.Age,
			Standard: req.Standard,
		}
		if err := deps.Store.UpsertStudent(student); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save student: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleGetStudent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		student, err := deps.Store.GetStudent(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "student not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get student: %v", err)
			return
		}
		writeJSON(w, student)
	}
}

func handleEvict(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		count, err := deps.Evictor.EvictExpired()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "eviction failed: %v", err)
			return
		}
		writeJSON(w, map[string]int64{"evicted": count})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": fmt.Sprintf(format, args...),
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

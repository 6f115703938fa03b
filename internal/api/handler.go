// Package api provides HTTP handlers for the quest API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kodlidy/quest-server/internal/domain"
	"github.com/kodlidy/quest-server/internal/engine"
	"github.com/kodlidy/quest-server/internal/live"
	"github.com/kodlidy/quest-server/internal/store"
)

// Handler provides common handler utilities and dependencies.
type Handler struct {
	repo store.Repository
	eng  *engine.Engine
	feed *live.Feed
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, eng *engine.Engine, feed *live.Feed) *Handler {
	return &Handler{
		repo: repo,
		eng:  eng,
		feed: feed,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// loadProgress fetches the player's record. A missing or unparseable record
// reads as empty progress, never as an error the player sees.
func (h *Handler) loadProgress(ctx context.Context, playerID string) (*domain.Progress, error) {
	p, err := h.repo.GetProgress(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = domain.NewProgress()
	}
	return p, nil
}

// loadRecomputed loads progress, rederives the cached unlock flag, and
// persists the result. Every read path goes through here so the stored
// UnlockedFinal can never drift from the completed set.
func (h *Handler) loadRecomputed(ctx context.Context, playerID string) (*domain.Progress, error) {
	p, err := h.loadProgress(ctx, playerID)
	if err != nil {
		return nil, err
	}
	h.eng.RecomputeUnlocks(p)
	if err := h.repo.SaveProgress(ctx, playerID, p); err != nil {
		return nil, err
	}
	return p, nil
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kodlidy/quest-server/internal/domain"
	"github.com/kodlidy/quest-server/internal/engine"
	"github.com/kodlidy/quest-server/internal/identity"
	"github.com/kodlidy/quest-server/internal/live"
)

// Signals returned to the presentation layer. The pages react to these:
// redirect to the overview, show a retry message, advance to the next
// question, or celebrate an unlock.
const (
	SignalRetry            = "retry"
	SignalNextQuestion     = "next_question"
	SignalPointCompleted   = "point_completed"
	SignalRedirectOverview = "redirect_overview"
	SignalBonusUnlocked    = "bonus_unlocked"
	SignalReset            = "reset"
)

// QuestHandler handles quest-related endpoints.
type QuestHandler struct {
	*Handler
}

// NewQuestHandler creates a new quest handler.
func NewQuestHandler(base *Handler) *QuestHandler {
	return &QuestHandler{Handler: base}
}

// RegisterRoutes registers quest routes.
func (h *QuestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/route", h.GetRoute)
		r.Get("/progress", h.GetProgress)
		r.Get("/points/{id}", h.GetPoint)
		r.Post("/points/{id}/answer", h.SubmitAnswer)
		r.Get("/final", h.GetFinal)
		r.Post("/final/keyword", h.SubmitKeyword)
		r.Get("/bonus", h.GetBonus)
		r.Get("/sources", h.GetSources)
		r.Post("/reset", h.Reset)
	})
}

type routePoint struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Available bool   `json:"available"`
	Letter    string `json:"letter,omitempty"` // only once earned
}

type progressSummary struct {
	Done          int      `json:"done"`
	Total         int      `json:"total"`
	Letters       []string `json:"letters"` // per-slot strip, "-" for missing
	UnlockedFinal bool     `json:"unlocked_final"`
	UnlockedBonus bool     `json:"unlocked_bonus"`
}

func (h *QuestHandler) summarize(p *domain.Progress) progressSummary {
	quest := h.eng.Quest()
	letters := make([]string, 0, len(quest.Points))
	for i := range quest.Points {
		letter, ok := p.Letters[quest.Points[i].ID]
		if !ok || letter == "" {
			letter = "-"
		}
		letters = append(letters, letter)
	}
	return progressSummary{
		Done:          p.CompletedCount(),
		Total:         len(quest.Points),
		Letters:       letters,
		UnlockedFinal: p.UnlockedFinal,
		UnlockedBonus: p.UnlockedBonus,
	}
}

// GetRoute returns the route overview: per-point status, the letter strip,
// and the next-step hint.
func (h *QuestHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	quest := h.eng.Quest()
	points := make([]routePoint, 0, len(quest.Points))
	for i := range quest.Points {
		pt := &quest.Points[i]
		rp := routePoint{
			ID:        pt.ID,
			Title:     pt.Title,
			Completed: p.IsCompleted(pt.ID),
			Available: engine.IsPointAvailable(p, pt.ID),
		}
		if rp.Completed {
			rp.Letter = p.Letters[pt.ID]
		}
		points = append(points, rp)
	}

	resp := map[string]interface{}{
		"title":    quest.Title,
		"points":   points,
		"progress": h.summarize(p),
	}
	if next := h.eng.NextStep(p); next != nil {
		resp["next_point_id"] = next.ID
		resp["next_point_title"] = next.Title
	}
	JSON(w, http.StatusOK, resp)
}

// GetProgress returns the player's raw progress record.
func (h *QuestHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	JSON(w, http.StatusOK, p)
}

func pointIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

type questionView struct {
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// GetPoint resolves a waypoint visit. Locked points signal a redirect to
// the overview; a point whose stored index has no question left completes
// on the spot. Accepted answers never leave the server.
func (h *QuestHandler) GetPoint(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	id, ok := pointIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid point id")
		return
	}

	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	res := h.eng.Visit(p, id)
	switch res.State {
	case engine.VisitUnknownPoint:
		Error(w, http.StatusNotFound, "unknown point")
	case engine.VisitLocked:
		JSON(w, http.StatusForbidden, map[string]interface{}{
			"signal": SignalRedirectOverview,
			"error":  "point locked",
		})
	case engine.VisitAutoCompleted:
		if err := h.repo.SaveProgress(r.Context(), playerID, p); err != nil {
			slog.Error("Failed to save progress", "error", err, "player_id", playerID)
			Error(w, http.StatusInternalServerError, "failed to save progress")
			return
		}
		h.feed.Publish(playerID, live.Event{
			Kind:     SignalPointCompleted,
			PointID:  id,
			Snapshot: h.summarize(p),
		})
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal":         SignalPointCompleted,
			"letter":         res.Point.Letter,
			"final_unlocked": p.UnlockedFinal,
		})
	case engine.VisitQuestion:
		JSON(w, http.StatusOK, map[string]interface{}{
			"point": map[string]interface{}{
				"id":      res.Point.ID,
				"title":   res.Point.Title,
				"text":    res.Point.Text,
				"image":   res.Point.Image,
				"sources": res.Point.Sources,
			},
			"question": questionView{
				Type:    res.Question.Type,
				Text:    res.Question.Text,
				Options: res.Question.Options,
			},
			"index": res.Index,
			"total": res.Total,
		})
	}
}

type answerRequest struct {
	// Answer is nil when the UI had no usable value to submit (a choice
	// question with nothing selected).
	Answer *string `json:"answer"`
}

// SubmitAnswer grades the current question at a waypoint.
func (h *QuestHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	id, ok := pointIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid point id")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	answer := ""
	if req.Answer != nil {
		answer = *req.Answer
	}
	res := h.eng.SubmitAnswer(p, id, answer, req.Answer != nil)

	if res.Mutated {
		if err := h.repo.SaveProgress(r.Context(), playerID, p); err != nil {
			slog.Error("Failed to save progress", "error", err, "player_id", playerID)
			Error(w, http.StatusInternalServerError, "failed to save progress")
			return
		}
	}

	switch res.Outcome {
	case engine.AnswerUnknownPoint:
		Error(w, http.StatusNotFound, "unknown point")
	case engine.AnswerLocked:
		JSON(w, http.StatusForbidden, map[string]interface{}{
			"signal": SignalRedirectOverview,
			"error":  "point locked",
		})
	case engine.AnswerNoInput:
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal": SignalRetry,
			"reason": "no_answer",
		})
	case engine.AnswerWrong:
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal": SignalRetry,
			"reason": "wrong",
		})
	case engine.AnswerNextQuestion:
		h.feed.Publish(playerID, live.Event{Kind: "progress", PointID: id, Snapshot: h.summarize(p)})
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal": SignalNextQuestion,
			"index":  res.NextIndex,
			"total":  res.Total,
		})
	case engine.AnswerCompleted:
		h.feed.Publish(playerID, live.Event{
			Kind:     SignalPointCompleted,
			PointID:  id,
			Snapshot: h.summarize(p),
		})
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal":         SignalPointCompleted,
			"letter":         res.Letter,
			"final_unlocked": res.FinalUnlocked,
		})
	}
}

// GetFinal returns the final page state: locked until every point is done,
// then the assembled keyword built from the player's own letters.
func (h *QuestHandler) GetFinal(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	resp := map[string]interface{}{
		"unlocked_final": p.UnlockedFinal,
		"unlocked_bonus": p.UnlockedBonus,
	}
	if p.UnlockedFinal {
		if assembled, ok := h.eng.AssembleKeyword(p); ok {
			resp["assembled"] = assembled
		}
		resp["letters"] = h.summarize(p).Letters
	}
	JSON(w, http.StatusOK, resp)
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

// SubmitKeyword checks the final keyword; success unlocks the bonus
// permanently.
func (h *QuestHandler) SubmitKeyword(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())

	var req keywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	res := h.eng.SubmitKeyword(p, req.Keyword)
	if res.Mutated {
		if err := h.repo.SaveProgress(r.Context(), playerID, p); err != nil {
			slog.Error("Failed to save progress", "error", err, "player_id", playerID)
			Error(w, http.StatusInternalServerError, "failed to save progress")
			return
		}
	}

	switch res.Outcome {
	case engine.KeywordLocked:
		JSON(w, http.StatusForbidden, map[string]interface{}{
			"signal": SignalRedirectOverview,
			"error":  "final locked",
		})
	case engine.KeywordEmpty:
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal": SignalRetry,
			"reason": "empty",
		})
	case engine.KeywordWrong:
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal": SignalRetry,
			"reason": "wrong",
		})
	case engine.KeywordCorrect:
		h.feed.Publish(playerID, live.Event{Kind: SignalBonusUnlocked, Snapshot: h.summarize(p)})
		JSON(w, http.StatusOK, map[string]interface{}{
			"signal": SignalBonusUnlocked,
		})
	}
}

// GetBonus returns the bonus content once unlocked.
func (h *QuestHandler) GetBonus(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	p, err := h.loadRecomputed(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	if !p.UnlockedBonus {
		JSON(w, http.StatusOK, map[string]interface{}{"unlocked": false})
		return
	}

	resp := map[string]interface{}{"unlocked": true}
	if b := h.eng.Quest().Bonus; b != nil {
		resp["bonus"] = b
	}
	JSON(w, http.StatusOK, resp)
}

// GetSources returns the deduplicated union of every point's sources plus
// the bonus sources, in first-seen order.
func (h *QuestHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	quest := h.eng.Quest()
	seen := make(map[string]bool)
	sources := []string{}
	add := func(urls []string) {
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				sources = append(sources, u)
			}
		}
	}
	for i := range quest.Points {
		add(quest.Points[i].Sources)
	}
	if quest.Bonus != nil {
		add(quest.Bonus.Sources)
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// Reset destroys the player's progress. The pages show a confirmation
// dialog first; the API insists on the explicit confirm flag so a stray
// request cannot wipe a route.
func (h *QuestHandler) Reset(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Confirm {
		Error(w, http.StatusBadRequest, "reset requires confirmation")
		return
	}

	if err := h.repo.DeleteProgress(r.Context(), playerID); err != nil {
		slog.Error("Failed to reset progress", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to reset progress")
		return
	}

	empty := domain.NewProgress()
	h.feed.Publish(playerID, live.Event{Kind: SignalReset, Snapshot: h.summarize(empty)})
	slog.Info("Progress reset", "player_id", playerID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"signal":   SignalReset,
		"progress": empty,
	})
}

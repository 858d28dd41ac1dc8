package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/braccet/core/internal/bracket"
)

type BracketHandler struct {
	controller *bracket.Controller
}

func NewBracketHandler(controller *bracket.Controller) *BracketHandler {
	return &BracketHandler{controller: controller}
}

type initializeRequest struct {
	Format    string   `json:"format"`
	Players   []string `json:"players"`
	BestOf    int      `json:"best_of"`
	Randomize bool     `json:"randomize"`
}

type matchResultRequest struct {
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
}

type forceWinRequest struct {
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type opponentResponse struct {
	Opponent string `json:"opponent"`
	Found    bool   `json:"found"`
}

type matchCheckResponse struct {
	CanMatch bool `json:"can_match"`
}

// Initialize starts a new tournament from a list of display names.
func (h *BracketHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BestOf == 0 {
		req.BestOf = 1
	}

	err := h.controller.Initialize(r.Context(), req.Format, req.Players, req.BestOf, req.Randomize)
	if err != nil {
		writeBracketError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(statusResponse{Status: h.controller.GetStatus()})
}

// Status renders the full bracket summary as structured JSON (rounds,
// matches, frozen flag) alongside the plain-text status string.
func (h *BracketHandler) Status(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.controller.Snapshot())
}

// Reset clears the tournament entirely, removing the persisted file.
func (h *BracketHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Freeze halts advancement after the current round.
func (h *BracketHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Freeze(r.Context()); err != nil {
		writeBracketError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Resume clears a freeze and advances any held winners.
func (h *BracketHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Resume(r.Context()); err != nil {
		writeBracketError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ForceWin is an operator override that credits one battle win without a
// played battle, reusing the same scoring and advancement path as a normal
// result report; it completes the series only when that win reaches the
// threshold.
func (h *BracketHandler) ForceWin(w http.ResponseWriter, r *http.Request) {
	var req forceWinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.controller.RecordWin(r.Context(), req.Winner, req.Loser)
	w.WriteHeader(http.StatusOK)
}

// MatchCheck reports whether two identities (query params a, b) are each
// other's current active opponent.
func (h *BracketHandler) MatchCheck(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	json.NewEncoder(w).Encode(matchCheckResponse{CanMatch: h.controller.CanMatch(a, b)})
}

// Opponent returns id's current opponent, if any.
func (h *BracketHandler) Opponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opp, ok := h.controller.GetOpponent(id)
	json.NewEncoder(w).Encode(opponentResponse{Opponent: opp, Found: ok})
}

// MatchResult is the battle-end hook: it records a series win and never
// surfaces a domain failure as a 5xx.
func (h *BracketHandler) MatchResult(w http.ResponseWriter, r *http.Request) {
	var req matchResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.controller.RecordWin(r.Context(), req.Winner, req.Loser)
	w.WriteHeader(http.StatusOK)
}

func writeBracketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bracket.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, bracket.ErrNotInitialized):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bracket.ErrInvalidBestOf), errors.Is(err, bracket.ErrInvalidParticipants), errors.Is(err, bracket.ErrDuplicateIdentity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bracket.ErrAlreadyFrozen), errors.Is(err, bracket.ErrNotFrozen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

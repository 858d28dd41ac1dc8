package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/braccet/core/internal/rating"
)

type RatingHandler struct {
	ratings *rating.Registry
}

func NewRatingHandler(ratings *rating.Registry) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type ratingRow struct {
	Username    string `json:"username"`
	Elo         string `json:"elo"`
	Glicko      string `json:"glicko"`
	RD          string `json:"rating_deviation"`
	GXE         string `json:"gxe"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Ties        int    `json:"ties"`
	GamesPlayed int    `json:"games_played"`
}

type resultRequest struct {
	Player1 string  `json:"player1"`
	Player2 string  `json:"player2"`
	Score   float64 `json:"player1_score"`
}

type resultResponse struct {
	Player1Score float64 `json:"player1_score"`
	Player1Elo   float64 `json:"player1_elo"`
	Player2Elo   float64 `json:"player2_elo"`
}

type playerResponse struct {
	Elo  float64 `json:"elo"`
	HTML string  `json:"html"`
}

// Ladder returns the full sorted ladder for a format. With a "prefix"
// query parameter it renders the filtered HTML leaderboard block instead.
func (h *RatingHandler) Ladder(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	prefix := r.URL.Query().Get("prefix")
	store := h.ratings.Get(format)

	if prefix != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(store.GetTop(r.Context(), prefix)))
		return
	}

	rows := store.GetLadder(r.Context())
	out := make([]ratingRow, len(rows))
	for i, row := range rows {
		out[i] = toRatingRow(row)
	}
	json.NewEncoder(w).Encode(out)
}

// Player returns one identity's current ELO alongside the rendered
// single-row HTML summary.
func (h *RatingHandler) Player(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	id := chi.URLParam(r, "id")
	store := h.ratings.Get(format)

	html := store.Visualize(r.Context(), id)
	if html == "" {
		writeError(w, http.StatusNotFound, "no rating on record for that identity")
		return
	}
	elo := store.GetRating(r.Context(), id, nil)
	json.NewEncoder(w).Encode(playerResponse{Elo: elo, HTML: html})
}

// Result records a finished battle's outcome for a format.
func (h *RatingHandler) Result(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store := h.ratings.Get(format)
	score, elo1, elo2 := store.UpdateRating(r.Context(), req.Player1, req.Player2, req.Score, io.Discard)
	json.NewEncoder(w).Encode(resultResponse{Player1Score: score, Player1Elo: elo1, Player2Elo: elo2})
}

func toRatingRow(r *rating.Row) ratingRow {
	return ratingRow{
		Username:    r.Display,
		Elo:         formatElo(r.Elo),
		Glicko:      formatElo(r.Glicko),
		RD:          formatElo(r.RD),
		GXE:         r.GXE.String(),
		Wins:        r.W,
		Losses:      r.L,
		Ties:        r.T,
		GamesPlayed: r.GamesPlayed,
	}
}

func formatElo(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

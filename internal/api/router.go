// Package api wires the read/admin HTTP surface: a thin
// request-decode/call/encode layer in front of the bracket
// controller and rating registry. None of this surface is required by the
// battle-server integration itself — it exists for dashboards and operator
// tooling built on top of it.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/braccet/core/internal/api/handlers"
	"github.com/braccet/core/internal/bracket"
	"github.com/braccet/core/internal/rating"
)

func NewRouter(controller *bracket.Controller, ratings *rating.Registry) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:4200", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	bracketHandler := handlers.NewBracketHandler(controller)
	ratingHandler := handlers.NewRatingHandler(ratings)

	r.Get("/health", handlers.Health)

	r.Post("/brackets", bracketHandler.Initialize)
	r.Get("/brackets", bracketHandler.Status)
	r.Post("/brackets/reset", bracketHandler.Reset)
	r.Post("/brackets/freeze", bracketHandler.Freeze)
	r.Post("/brackets/resume", bracketHandler.Resume)
	r.Post("/brackets/force-win", bracketHandler.ForceWin)
	r.Get("/brackets/match-check", bracketHandler.MatchCheck)
	r.Get("/brackets/opponent/{id}", bracketHandler.Opponent)
	r.Post("/matches/result", bracketHandler.MatchResult)

	r.Get("/ratings/{format}/ladder", ratingHandler.Ladder)
	r.Get("/ratings/{format}/player/{id}", ratingHandler.Player)
	r.Post("/ratings/{format}/result", ratingHandler.Result)

	return r
}

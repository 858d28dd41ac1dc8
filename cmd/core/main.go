// Command core runs the bracket tournament controller and dual ELO/Glicko
// rating engine as a single process with an admin/read HTTP surface on top.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/braccet/core/internal/api"
	"github.com/braccet/core/internal/applog"
	"github.com/braccet/core/internal/bracket"
	"github.com/braccet/core/internal/config"
	"github.com/braccet/core/internal/rating"
)

func main() {
	cfg := config.Load()

	bracketLog := applog.New("bracket")
	controller := bracket.NewController(cfg.BracketFile, cfg.Bracket, bracketLog)
	controller.LoadOrInitialize(context.Background())

	ratingLog := applog.New("rating")
	ratings := rating.NewRegistry(cfg.Rating.DataDir, ratingLog)

	router := api.NewRouter(controller, ratings)

	log.Printf("core: starting on port %s", cfg.HTTP.Port)
	if err := http.ListenAndServe(":"+cfg.HTTP.Port, router); err != nil {
		log.Fatalf("core: server failed: %v", err)
	}
}

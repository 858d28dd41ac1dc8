// Package config loads startup settings from the environment, the same
// getEnv-over-os.LookupEnv pattern this codebase's service configs use.
package config

import (
	"os"
	"strconv"
	"strings"
)

// BracketDefaults is the "defaults provider" collaborator consulted by
// Controller.LoadOrInitialize when no persisted tournament exists.
type BracketDefaults struct {
	Format           string
	BestOf           int
	Participants     int
	PlayerList       []string
	RandomizeSeeding bool
	AutoInit         bool
}

// RatingConfig controls where per-format ladder files live.
type RatingConfig struct {
	DataDir string
}

// HTTPConfig controls the optional admin/read HTTP surface.
type HTTPConfig struct {
	Port string
}

// Config is the full set of process-wide settings.
type Config struct {
	BracketFile string
	Bracket     BracketDefaults
	Rating      RatingConfig
	HTTP        HTTPConfig
}

// Load reads every setting from the environment, falling back to defaults
// sized for local development.
func Load() Config {
	return Config{
		BracketFile: getEnv("BRACKET_STATE_FILE", "data/bracket.csv"),
		Bracket: BracketDefaults{
			Format:           getEnv("BRACKET_DEFAULT_FORMAT", "gen1ou"),
			BestOf:           getEnvInt("BRACKET_DEFAULT_BEST_OF", 1),
			Participants:     getEnvInt("BRACKET_DEFAULT_PARTICIPANTS", 0),
			PlayerList:       getEnvList("BRACKET_DEFAULT_PLAYERS"),
			RandomizeSeeding: getEnvBool("BRACKET_RANDOMIZE_SEEDING", false),
			AutoInit:         getEnvBool("BRACKET_AUTO_INIT", false),
		},
		Rating: RatingConfig{
			DataDir: getEnv("RATING_DATA_DIR", "data/ratings"),
		},
		HTTP: HTTPConfig{
			Port: getEnv("CORE_SERVICE_PORT", "8090"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

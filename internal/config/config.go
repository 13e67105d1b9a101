package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the settings of the executables. The engine itself takes no
// configuration beyond StudyParameters and a seed.
type Config struct {
	// DatabaseURL enables the postgres record repository when set.
	DatabaseURL string
	// ServerPort is the HTTP listen port for the API surface.
	ServerPort string
	// Seed is the default base seed when no --seed flag is given.
	Seed uint64
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("NOF1_DATABASE_URL"),
		ServerPort:  getEnvOrDefault("NOF1_PORT", "8080"),
		Seed:        42,
	}

	if raw := os.Getenv("NOF1_SEED"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		cfg.Seed = seed
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

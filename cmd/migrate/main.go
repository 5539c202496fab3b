package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/config"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/repository/postgres"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Msg("Running database migrations")

	if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

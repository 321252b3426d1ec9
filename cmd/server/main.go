package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/server"
	"github.com/openwearables/pulse/internal/utils/logger"
)

func main() {
	logger.Init()
	log.Info().Msg("Starting local aggregation server...")

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	srv := server.NewServer(&cfg.ServerEnvConfig)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/simulator"
	"github.com/openwearables/pulse/internal/utils/logger"
)

func main() {
	logger.Init()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment as-is")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	pusher, err := simulator.NewPusher(&cfg.SimulatorEnvConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build simulator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	log.Info().
		Str("target", cfg.SimulatorEnvConfig.TargetURL).
		Dur("interval", cfg.SimulatorEnvConfig.PushInterval).
		Msg("wearable simulator running")
	pusher.Run(ctx)
}

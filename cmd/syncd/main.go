package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/coordinator"
	"github.com/openwearables/pulse/internal/sink"
	"github.com/openwearables/pulse/internal/syncstate"
	"github.com/openwearables/pulse/internal/transport/localserver"
	"github.com/openwearables/pulse/internal/utils/logger"
	"github.com/openwearables/pulse/internal/utils/redis"
)

func main() {
	logger.Init()
	log.Info().Msg("Starting sync daemon...")

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	local, err := localserver.NewClient(&cfg.LocalServerEnvConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init local server client")
	}

	store, err := newStateStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init sync state store")
	}

	// The platform health-store binding is injected here; without one the
	// in-memory sink keeps the pipeline observable.
	adapter := sink.NewAdapter(sink.NewMemorySink())
	outbox := coordinator.NewMemoryOutbox()

	// Radio requires a physical link binding; the daemon runs HTTP-only
	// until one is wired in.
	coord, err := coordinator.New(&cfg.SyncEnvConfig, local, nil, adapter, store, outbox)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init coordinator")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received, stopping coordinator")
		coord.Stop()
	}()

	coord.Start()
	coord.StartSync()

	<-coord.Ctx.Done()
	log.Info().Msg("sync daemon stopped")
}

func newStateStore(cfg *config.AppConfig) (syncstate.Store, error) {
	if cfg.StateStore == "redis" {
		kv, err := redis.NewRedis(&cfg.RedisEnvConfig)
		if err != nil {
			return nil, err
		}
		return redis.NewStateStore(kv), nil
	}
	return syncstate.NewFileStore(cfg.StateDir)
}

// Package config defines environment configuration structs and loaders.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	SyncEnvConfig
	LocalServerEnvConfig
	ServerEnvConfig
	SimulatorEnvConfig
	RedisEnvConfig
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SyncEnvConfig holds coordinator runtime values.
type SyncEnvConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	// StateDir is where the sync-state JSON blob lives when the file store
	// is selected.
	StateDir   string `env:"SYNC_STATE_DIR" envDefault:".pulse"`
	StateStore string `env:"SYNC_STATE_STORE" envDefault:"file"` // file or redis
	DeviceID   string `env:"DEVICE_ID" envDefault:"wearable-0"`
	DeviceName string `env:"DEVICE_NAME" envDefault:"pulse"`
}

// LocalServerEnvConfig configures the local HTTP server transport client.
type LocalServerEnvConfig struct {
	ServerHost     string        `env:"LOCAL_SERVER_HOST" envDefault:"127.0.0.1"`
	ServerPort     int           `env:"LOCAL_SERVER_PORT" envDefault:"8421"`
	ClientTimeout  time.Duration `env:"CLIENT_TIMEOUT" envDefault:"30s"`
	FetchLimit     int           `env:"FETCH_LIMIT" envDefault:"500"`
	UploadRetryMax int           `env:"UPLOAD_RETRY_MAX" envDefault:"3"`
	ProbeTimeout   time.Duration `env:"PROBE_TIMEOUT" envDefault:"2s"`
}

// ServerEnvConfig configures the reference local server.
type ServerEnvConfig struct {
	Address       string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Port          int    `env:"SERVER_PORT" envDefault:"8421"`
	BodySizeLimit int    `env:"SERVER_BODY_LIMIT" envDefault:"1048576"`
}

// SimulatorEnvConfig configures the wearable simulator.
type SimulatorEnvConfig struct {
	TargetURL    string        `env:"SIMULATOR_TARGET_URL" envDefault:"http://127.0.0.1:8421"`
	PushInterval time.Duration `env:"SIMULATOR_PUSH_INTERVAL" envDefault:"10s"`
	Seed         int64         `env:"SIMULATOR_SEED" envDefault:"0"`
}

// RedisEnvConfig configures the optional Redis-backed state store.
type RedisEnvConfig struct {
	RedisHost     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// IntervalConfig drives the coordinator's periodic routines. The sync tick
// fires on a fixed interval independent of whether the previous cycle
// completed; overlapping ticks are no-ops under the re-entrancy guard.
type IntervalConfig struct {
	SyncInterval      time.Duration
	DiscoveryInterval time.Duration
}

var (
	DevIntervalConfig = &IntervalConfig{
		SyncInterval:      5 * time.Second,
		DiscoveryInterval: 15 * time.Second,
	}

	ProdIntervalConfig = &IntervalConfig{
		SyncInterval:      30 * time.Second,
		DiscoveryInterval: 5 * time.Minute,
	}
)

func NewIntervalConfig(environment string) *IntervalConfig {
	switch strings.ToLower(environment) {
	case "dev", "test":
		return DevIntervalConfig
	case "prod":
		return ProdIntervalConfig
	}

	return ProdIntervalConfig
}

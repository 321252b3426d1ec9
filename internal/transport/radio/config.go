package radio

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config tunes the radio transport.
type Config struct {
	// MaxPayload caps the per-frame payload; never above the link MTU.
	MaxPayload int `env:"RADIO_MAX_PAYLOAD, default=500"`
	// FramePacing is the delay between consecutive frames, respecting the
	// link's flow control.
	FramePacing time.Duration `env:"RADIO_FRAME_PACING, default=100ms"`
	// ReadTimeout bounds a single frame or state read.
	ReadTimeout time.Duration `env:"RADIO_READ_TIMEOUT, default=10s"`
	// ScanTimeout bounds a device scan.
	ScanTimeout time.Duration `env:"RADIO_SCAN_TIMEOUT, default=15s"`
}

// NewConfigFromEnv loads radio configuration from the environment.
func NewConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process radio env: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the values used when no environment is present.
func DefaultConfig() *Config {
	return &Config{
		MaxPayload:  MaxPayload,
		FramePacing: 100 * time.Millisecond,
		ReadTimeout: 10 * time.Second,
		ScanTimeout: 15 * time.Second,
	}
}

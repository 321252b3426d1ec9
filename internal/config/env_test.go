package config

import "testing"

func TestNewIntervalConfig(t *testing.T) {
	cases := []struct {
		environment string
		want        *IntervalConfig
	}{
		{"dev", DevIntervalConfig},
		{"test", DevIntervalConfig},
		{"DEV", DevIntervalConfig},
		{"prod", ProdIntervalConfig},
		{"", ProdIntervalConfig},
		{"staging", ProdIntervalConfig},
	}
	for _, tc := range cases {
		if got := NewIntervalConfig(tc.environment); got != tc.want {
			t.Fatalf("NewIntervalConfig(%q) = %+v", tc.environment, got)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LocalServerEnvConfig.ServerPort != 8421 {
		t.Fatalf("default local server port = %d", cfg.LocalServerEnvConfig.ServerPort)
	}
	if cfg.SyncEnvConfig.StateStore != "file" {
		t.Fatalf("default state store = %q", cfg.SyncEnvConfig.StateStore)
	}
}

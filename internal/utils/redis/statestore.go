package redis

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/syncstate"
)

// stateKey is the fixed name the serialized sync state lives under.
const stateKey = "pulse:sync_state"

// StateStore persists the sync state as a single JSON blob in Redis. Drop-in
// alternative to the file store for deployments that already run Redis.
type StateStore struct {
	kv RedisInterface
}

func NewStateStore(kv RedisInterface) *StateStore {
	return &StateStore{kv: kv}
}

// Load reads the persisted state; a missing key means first run.
func (s *StateStore) Load(ctx context.Context) (*syncstate.SyncState, error) {
	raw, err := s.kv.Get(ctx, stateKey)
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	if raw == "" {
		log.Info().Str("key", stateKey).Msg("no persisted sync state, starting from epoch")
		return syncstate.New(), nil
	}

	var state syncstate.SyncState
	if err := sonic.UnmarshalString(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal sync state: %w", err)
	}
	return &state, nil
}

// Save overwrites the stored blob. No TTL: the watermark record must outlive
// any cache policy.
func (s *StateStore) Save(ctx context.Context, state *syncstate.SyncState) error {
	raw, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	if err := s.kv.Set(ctx, stateKey, raw, 0); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}

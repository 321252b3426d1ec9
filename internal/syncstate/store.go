package syncstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

// StateFileName is the fixed name the serialized state is stored under.
const StateFileName = "sync_state.json"

// Store persists the serialized SyncState between runs. Read once at
// coordinator startup, written after every processed cycle; no concurrent
// writers assumed.
type Store interface {
	Load(ctx context.Context) (*SyncState, error)
	Save(ctx context.Context, state *SyncState) error
}

// FileStore keeps the state as a single JSON blob in a local directory.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, StateFileName)}, nil
}

// Load reads the persisted state. A missing file is first-run semantics: a
// fresh state with epoch watermarks is returned, not an error.
func (f *FileStore) Load(ctx context.Context) (*SyncState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", f.path).Msg("no persisted sync state, starting from epoch")
			return New(), nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var state SyncState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal sync state: %w", err)
	}
	return &state, nil
}

// Save writes the state atomically (write to temp file, then rename).
func (f *FileStore) Save(ctx context.Context, state *SyncState) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename sync state: %w", err)
	}
	return nil
}

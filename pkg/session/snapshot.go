package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/artmobile/artkit/pkg/identity"
)

// ErrNoSnapshot is returned by SnapshotStore.Load when nothing was
// persisted.
var ErrNoSnapshot = errors.New("session: no snapshot")

// SnapshotStore persists the last authenticated user across restarts.
// The stored record is a rendering hint only; the provider subscription
// remains the source of truth once it reports.
type SnapshotStore interface {
	Save(ctx context.Context, user *identity.UserRecord) error
	Load(ctx context.Context) (*identity.UserRecord, error)
	Clear(ctx context.Context) error
}

// LastKnownUser returns the persisted user from a previous run, or nil
// when no snapshot store is configured or nothing was saved. Callers use
// it to render optimistically during Bootstrapping.
func (s *Session) LastKnownUser(ctx context.Context) *identity.UserRecord {
	if s.snapshots == nil {
		return nil
	}
	user, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil
	}
	return user
}

// FileSnapshotStore keeps the snapshot as a JSON file, the closest
// server-side analogue to a device key-value store.
type FileSnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSnapshotStore creates a store writing to path. The parent
// directory must exist.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (s *FileSnapshotStore) Save(ctx context.Context, user *identity.UserRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write-then-rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) Load(ctx context.Context) (*identity.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var user identity.UserRecord
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &user, nil
}

func (s *FileSnapshotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)

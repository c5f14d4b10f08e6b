package challenge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"timed-quiz-service/internal/domain"
)

// SnapshotKey names the device-local cache entry.
const SnapshotKey = "cached_questions_v3"

// SnapshotStore keeps the device-local question snapshot.
type SnapshotStore interface {
	// LoadSnapshot returns false when nothing has been stored yet.
	LoadSnapshot() (domain.Snapshot, bool, error)
	SaveSnapshot(snapshot domain.Snapshot) error
}

// MemorySnapshots holds the snapshot for the life of the process.
type MemorySnapshots struct {
	mu       sync.Mutex
	snapshot *domain.Snapshot
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{}
}

func (m *MemorySnapshots) LoadSnapshot() (domain.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return domain.Snapshot{}, false, nil
	}
	out := *m.snapshot
	out.Data = append([]domain.Question(nil), m.snapshot.Data...)
	return out, true, nil
}

func (m *MemorySnapshots) SaveSnapshot(snapshot domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot.Data = append([]domain.Question(nil), snapshot.Data...)
	m.snapshot = &snapshot
	return nil
}

// FileSnapshots persists the snapshot as a JSON file so it survives restarts.
type FileSnapshots struct {
	path string
	mu   sync.Mutex
}

// NewFileSnapshots stores the snapshot at path. An empty path selects
// <user cache dir>/timed-quiz/cached_questions_v3.json.
func NewFileSnapshots(path string) (*FileSnapshots, error) {
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locate cache dir: %w", err)
		}
		path = filepath.Join(dir, "timed-quiz", SnapshotKey+".json")
	}
	return &FileSnapshots{path: path}, nil
}

// Path returns the snapshot file location.
func (f *FileSnapshots) Path() string {
	return f.path
}

func (f *FileSnapshots) LoadSnapshot() (domain.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	return snapshot, true, nil
}

func (f *FileSnapshots) SaveSnapshot(snapshot domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/sitesync/internal/utils"
)

const (
	DefaultFileName = "sitesync.manifest.json"
	LockSuffix      = ".lock"
	tmpPattern      = ".tmp.*"
)

// Store persists a manifest as a JSON file.
// Load, mutate and Save must happen while holding Lock; concurrent writers are not supported.
type Store struct {
	path  string
	flock *flock.Flock
}

func NewStore(path string) *Store {
	return &Store{
		path:  path,
		flock: flock.New(path + LockSuffix),
	}
}

// Path returns the manifest file path
func (s *Store) Path() string {
	return s.path
}

// Lock takes an exclusive, non-blocking lock on the manifest.
func (s *Store) Lock() error {
	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	locked, err := s.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	if !locked {
		return ErrManifestLocked
	}
	return nil
}

// Unlock releases the lock and removes the lock file. It is a no-op if this store does not hold the lock.
func (s *Store) Unlock() error {
	if !s.flock.Locked() {
		return nil
	}
	if err := s.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock manifest: %w", err)
	}
	return os.Remove(s.flock.Path())
}

// Load reads the manifest. It returns (nil, nil) if no manifest has been written yet.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", s.path, err)
	}

	m, err := Decode(data)
	if err != nil {
		var cerr *CorruptError
		if errors.As(err, &cerr) {
			cerr.File = s.path
		}
		return nil, err
	}

	slog.Debug("manifest loaded", "path", s.path, "version", m.Version, "resources", len(m.Resources))
	return m, nil
}

// Save atomically replaces the manifest on disk. A reader never observes a partial file.
func (s *Store) Save(m *Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(s.path)+tmpPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", s.path, err)
	}

	success = true
	slog.Debug("manifest saved", "path", s.path, "version", m.Version, "resources", len(m.Resources))
	return nil
}

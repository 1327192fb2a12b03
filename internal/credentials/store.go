package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"fileconv/internal/fileutil"
	"fileconv/internal/logging"
)

// Store abstracts persistence for the bearer credential.
type Store interface {
	// Load returns the stored credential. Missing or unreadable values
	// resolve to ("", false) and are never an error.
	Load() (string, bool)
	Save(credential string) error
	Clear() error
}

type fileState struct {
	AccessToken string `json:"access_token"`
}

// FileStore writes the credential to a JSON file on disk.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewFileStore builds a FileStore rooted at the provided path. A nil logger
// discards diagnostics.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "credentials"),
	}
}

// Path returns the credential file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential from disk.
func (s *FileStore) Load() (string, bool) {
	if locked, err := s.lock.TryRLock(); err == nil && locked {
		defer s.lock.Unlock() //nolint:errcheck
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("credential unreadable; treating as absent", logging.Error(err))
		}
		return "", false
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Debug("credential file corrupt; treating as absent", logging.Error(err))
		return "", false
	}
	token := strings.TrimSpace(state.AccessToken)
	return token, token != ""
}

// Save persists the credential with restricted permissions. Concurrent
// writers are serialized by the file lock; the last writer wins.
func (s *FileStore) Save(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return errors.New("save credential: empty value")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure credential directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock credential file: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	data, err := json.MarshalIndent(fileState{AccessToken: credential}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	if err := fileutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential. Clearing an absent credential is not an error.
func (s *FileStore) Clear() error {
	if _, err := os.Stat(filepath.Dir(s.path)); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock credential file: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu         sync.Mutex
	credential string
}

// NewMemoryStore returns a MemoryStore seeded with credential, which may be empty.
func NewMemoryStore(credential string) *MemoryStore {
	return &MemoryStore{credential: strings.TrimSpace(credential)}
}

func (s *MemoryStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, s.credential != ""
}

func (s *MemoryStore) Save(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return errors.New("save credential: empty value")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	return nil
}

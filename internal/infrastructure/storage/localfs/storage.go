package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 10 * time.Millisecond
)

// Storage keeps every key in one JSON object file shared by all plagctl
// processes. Each operation re-reads the file under an advisory lock on
// "<path>.lock", so a write never replays a stale snapshot. Writes go
// through a temp file and rename.
type Storage struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu sync.Mutex
}

// New prepares the state file. A file that does not decode is moved to
// "<path>.corrupt" and the store starts empty.
func New(path string, logger *slog.Logger) (*Storage, error) {
	if path == "" {
		path = "./data/plagctl-state.json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	s := &Storage{path: path, lock: flock.New(path + ".lock"), logger: logger}
	err := s.exclusive(func() error {
		_, err := s.load(true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return "", false, fmt.Errorf("lock state file for read: %w", lockErr(err))
	}
	defer func() { _ = s.lock.Unlock() }()

	values, err := s.load(false)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Storage) Set(key, value string) error {
	return s.exclusive(func() error {
		values, err := s.load(true)
		if err != nil {
			return err
		}
		values[key] = value
		return s.flush(values)
	})
}

func (s *Storage) Delete(key string) error {
	return s.exclusive(func() error {
		values, err := s.load(true)
		if err != nil {
			return err
		}
		if _, ok := values[key]; !ok {
			return nil
		}
		delete(values, key)
		return s.flush(values)
	})
}

func (s *Storage) exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return fmt.Errorf("lock state file: %w", lockErr(err))
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func lockErr(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("timed out after %s", lockTimeout)
}

// load reads the current file contents. Undecodable content reads as
// empty; with quarantine set (exclusive lock held) the file is moved aside.
func (s *Storage) load(quarantine bool) (map[string]string, error) {
	values := map[string]string{}
	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return values, nil
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		if !quarantine {
			s.logger.Warn("state_file_unreadable", "path", s.path, "error", err)
			return map[string]string{}, nil
		}
		aside := s.path + ".corrupt"
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return nil, fmt.Errorf("move corrupt state file: %w", renameErr)
		}
		s.logger.Warn("state_file_quarantined", "path", s.path, "moved_to", aside, "error", err)
		return map[string]string{}, nil
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (s *Storage) flush(values map[string]string) error {
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".plagctl-state-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

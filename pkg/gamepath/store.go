// Package gamepath holds the selected SpiderHeck installation and reports the
// application status derived from it.
package gamepath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/framework"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// ExecutableNames are the files that identify a game directory across platforms.
var ExecutableNames = []string{"SpiderHeck.exe", "SpiderHeck.x86_64", "SpiderHeck"}

// ModsPath returns the Silk mods directory of gamePath.
func ModsPath(gamePath string) string {
	return filepath.Join(gamePath, "Silk", "Mods")
}

// Validate checks that path is a game directory and returns it absolute and
// cleaned.
func Validate(path string) (string, error) {
	if path == "" {
		return "", apperrors.NewInvalidGameDirectoryError(path, "game path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.NewInvalidGameDirectoryError(path, fmt.Sprintf("invalid path: %v", err))
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", apperrors.NewInvalidGameDirectoryError(abs, "path does not exist")
	}
	if !info.IsDir() {
		return "", apperrors.NewInvalidGameDirectoryError(abs, "path is not a directory")
	}
	for _, name := range ExecutableNames {
		if utils.IsFile(filepath.Join(abs, name)) {
			return abs, nil
		}
	}
	return "", apperrors.NewInvalidGameDirectoryError(abs, "this doesn't appear to be a SpiderHeck installation")
}

// state is the persisted form of the store.
type state struct {
	GamePath  string    `yaml:"game_path"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Store is the process-wide holder of the selected game path. It is loaded
// once at startup and changed only through Set.
type Store struct {
	mu        sync.RWMutex
	statePath string
	gamePath  string
	detected  bool

	locks  *lockmap.Map
	logger utils.Logger
}

// NewStore creates a store persisting to statePath. Pass the lock map shared
// with the framework managers.
func NewStore(statePath string, locks *lockmap.Map, logger utils.Logger) *Store {
	if locks == nil {
		locks = &lockmap.Map{}
	}
	return &Store{statePath: statePath, locks: locks, logger: utils.OrGlobal(logger)}
}

// Load reads the persisted path. A missing state file leaves the store empty;
// an unreadable one does too, reported as a recoverable error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperrors.NewFileSystemError("failed to read state file", err).WithContext("path", s.statePath)
	}

	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		s.logger.Warn("Ignoring corrupt state file %s: %v", s.statePath, err)
		return apperrors.NewConfigCorruptError(s.statePath, err)
	}

	s.mu.Lock()
	s.gamePath = st.GamePath
	s.detected = false
	s.mu.Unlock()
	return nil
}

// Detect fills an empty store from a Steam library scan without persisting
// the result. It reports whether a path was found.
func (s *Store) Detect(detect func() (string, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gamePath != "" {
		return false
	}
	path, ok := detect()
	if !ok {
		return false
	}
	s.gamePath = path
	s.detected = true
	s.logger.Info("Detected SpiderHeck at %s", path)
	return true
}

// Set validates path and makes it the current game path. The previous path is
// kept when validation or persistence fails.
func (s *Store) Set(path string) (string, error) {
	unlock := s.locks.Lock(framework.LockKey(path))
	defer unlock()

	abs, err := Validate(path)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(state{GamePath: abs, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	if err := utils.WriteFileAtomic(s.statePath, data, 0644); err != nil {
		return "", apperrors.NewFileSystemError("failed to save game path", err).WithContext("path", s.statePath)
	}

	s.mu.Lock()
	s.gamePath = abs
	s.detected = false
	s.mu.Unlock()

	s.logger.Info("Game path set to %s", abs)
	return abs, nil
}

// GamePath returns the current game path.
func (s *Store) GamePath() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gamePath, s.gamePath != ""
}

// ModsPath returns the mods directory of the current game path.
func (s *Store) ModsPath() (string, bool) {
	gp, ok := s.GamePath()
	if !ok {
		return "", false
	}
	return ModsPath(gp), true
}

// Detected reports whether the current path came from auto-detection rather
// than an explicit Set.
func (s *Store) Detected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detected
}

// StatePath returns the state file location.
func (s *Store) StatePath() string {
	return s.statePath
}

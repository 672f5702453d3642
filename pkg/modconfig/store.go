// Package modconfig persists per-mod configuration documents as YAML files
// under the game's Silk config root.
package modconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const docExt = ".yaml"

// Root returns the Silk config root of gamePath.
func Root(gamePath string) string {
	return filepath.Join(gamePath, "Silk", "Config")
}

// Dir returns the directory holding the documents of gamePath.
func Dir(gamePath string) string {
	return filepath.Join(Root(gamePath), "Mods")
}

// Store reads and writes mod configuration documents. Writers of the same
// (game, mod) pair are serialized, and all writers hold the config root in
// shared mode so a framework swap of that tree waits for them. Readers take
// no lock.
type Store struct {
	locks  *lockmap.Map
	logger utils.Logger
}

// NewStore creates a store. A nil locks map gets a private one.
func NewStore(locks *lockmap.Map, logger utils.Logger) *Store {
	if locks == nil {
		locks = &lockmap.Map{}
	}
	return &Store{locks: locks, logger: utils.OrGlobal(logger)}
}

// Path returns the document path for modID.
func (s *Store) Path(gamePath, modID string) (string, error) {
	if err := validateModID(modID); err != nil {
		return "", err
	}
	return filepath.Join(Dir(gamePath), modID+docExt), nil
}

func validateModID(modID string) error {
	switch {
	case strings.TrimSpace(modID) == "":
		return apperrors.NewInvalidArgumentError("mod id is required")
	case modID == "." || modID == "..":
		return apperrors.NewInvalidArgumentError("invalid mod id: " + modID)
	case strings.ContainsAny(modID, "/\\\x00") || filepath.Base(modID) != modID:
		return apperrors.NewInvalidArgumentError("mod id must not contain a path: " + modID)
	}
	return nil
}

// Get returns the document for modID. A missing document is an empty config.
// A corrupt one is also returned as an empty config, together with a
// recoverable ConfigCorruptError.
func (s *Store) Get(gamePath, modID string) (models.ModConfig, error) {
	path, err := s.Path(gamePath, modID)
	if err != nil {
		return nil, err
	}
	return s.load(path)
}

func (s *Store) load(path string) (models.ModConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.ModConfig{}, nil
	}
	if err != nil {
		return nil, apperrors.NewFileSystemError("failed to read mod config", err).WithContext("path", path)
	}

	doc := models.ModConfig{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Mod config %s is corrupt, using defaults: %v", path, err)
		return models.ModConfig{}, apperrors.NewConfigCorruptError(path, err)
	}
	return doc, nil
}

// Save replaces the document for modID.
func (s *Store) Save(gamePath, modID string, doc models.ModConfig) error {
	path, err := s.Path(gamePath, modID)
	if err != nil {
		return err
	}

	unlock := s.lock(gamePath, modID)
	defer unlock()

	return s.write(path, doc)
}

func (s *Store) write(path string, doc models.ModConfig) error {
	if doc == nil {
		doc = models.ModConfig{}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return apperrors.NewInvalidArgumentError(fmt.Sprintf("cannot encode mod config: %v", err))
	}
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return apperrors.NewFileSystemError("failed to write mod config", err).WithContext("path", path)
	}
	return nil
}

// SetValue sets one top-level key of the document for modID.
func (s *Store) SetValue(gamePath, modID, key string, value models.ConfigValue) error {
	if key == "" {
		return apperrors.NewInvalidArgumentError("config key is required")
	}
	return s.SetPath(gamePath, modID, []string{key}, value)
}

// SetPath sets a nested value, creating intermediate mappings as needed.
// Traversing through a value that is not a mapping is an error.
func (s *Store) SetPath(gamePath, modID string, keyPath []string, value models.ConfigValue) error {
	if len(keyPath) == 0 {
		return apperrors.NewInvalidArgumentError("config key is required")
	}
	for _, k := range keyPath {
		if k == "" {
			return apperrors.NewInvalidArgumentError("config key path has an empty segment")
		}
	}
	if value == nil {
		return apperrors.NewInvalidArgumentError("config value is required")
	}
	path, err := s.Path(gamePath, modID)
	if err != nil {
		return err
	}

	unlock := s.lock(gamePath, modID)
	defer unlock()

	doc, err := s.load(path)
	if err != nil && !apperrors.IsRecoverable(err) {
		return err
	}

	if err := setNested(doc, keyPath, value); err != nil {
		return err
	}
	return s.write(path, doc)
}

func setNested(doc models.ModConfig, keyPath []string, value models.ConfigValue) error {
	current := map[string]models.ConfigValue(doc)
	for i, k := range keyPath[:len(keyPath)-1] {
		next, ok := current[k]
		if !ok {
			m := models.MapValue{}
			current[k] = m
			current = m
			continue
		}
		m, ok := next.(models.MapValue)
		if !ok {
			return apperrors.NewInvalidArgumentError(
				fmt.Sprintf("cannot set %s: %s is not a mapping", strings.Join(keyPath, "."), strings.Join(keyPath[:i+1], ".")))
		}
		current = m
	}
	current[keyPath[len(keyPath)-1]] = value
	return nil
}

// List returns the mod ids that have a document, sorted.
func (s *Store) List(gamePath string) ([]string, error) {
	ids := []string{}

	entries, err := os.ReadDir(Dir(gamePath))
	if errors.Is(err, fs.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, apperrors.NewFileSystemError("failed to read mod config directory", err).WithContext("path", Dir(gamePath))
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != docExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, docExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the document for modID. Deleting an absent document succeeds.
func (s *Store) Delete(gamePath, modID string) error {
	path, err := s.Path(gamePath, modID)
	if err != nil {
		return err
	}

	unlock := s.lock(gamePath, modID)
	defer unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewFileSystemError("failed to delete mod config", err).WithContext("path", path)
	}
	return nil
}

func (s *Store) lock(gamePath, modID string) func() {
	unlockRoot := s.locks.RLock(lockmap.PathKey(Root(gamePath)))
	if abs, err := filepath.Abs(gamePath); err == nil {
		gamePath = abs
	}
	unlockDoc := s.locks.Lock(lockmap.Key("config", filepath.Clean(gamePath), modID))
	return func() {
		unlockDoc()
		unlockRoot()
	}
}

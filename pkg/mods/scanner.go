package mods

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const (
	unknownField       = "Unknown"
	defaultDescription = "Locally installed mod"
)

// Scanner rebuilds installed-mod records from a mods directory. Nothing is
// cached between calls.
type Scanner struct {
	logger utils.Logger
}

// NewScanner creates a scanner.
func NewScanner(logger utils.Logger) *Scanner {
	return &Scanner{logger: utils.OrGlobal(logger)}
}

// Scan lists the mods in modsPath in directory order. Entries that cannot be
// read or are not mods are skipped. A missing directory holds no mods.
func (s *Scanner) Scan(modsPath string) ([]models.InstalledMod, error) {
	result := []models.InstalledMod{}

	entries, err := os.ReadDir(modsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, apperrors.NewFileSystemError("failed to read mods directory", err).WithContext("path", modsPath)
	}

	meta, err := LoadMetadata(modsPath)
	if err != nil {
		s.logger.Warn("Ignoring unreadable mod metadata in %s: %v", modsPath, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		info, err := os.Stat(filepath.Join(modsPath, name))
		if err != nil {
			s.logger.Warn("Skipping %s: %v", name, err)
			continue
		}
		if !info.IsDir() && !isDLL(name) {
			continue
		}

		result = append(result, s.record(name, meta))
	}

	return result, nil
}

func (s *Scanner) record(name string, meta Metadata) models.InstalledMod {
	base := BaseName(name)
	enabled := !IsDisabledName(name)

	if r, ok := meta[base]; ok {
		mod := r.InstalledMod
		mod.FileName = name
		mod.Enabled = enabled
		if mod.ID == "" {
			mod.ID = base
		}
		if mod.Name == "" {
			mod.Name = base
		}
		return mod
	}

	return models.InstalledMod{
		ID:          base,
		Name:        base,
		FileName:    name,
		Enabled:     enabled,
		Version:     unknownField,
		Author:      unknownField,
		Description: defaultDescription,
	}
}

// VersionInfo returns the compatibility declaration recorded for modID. found
// is false when the mod has no sidecar entry.
func (s *Scanner) VersionInfo(modsPath, modID string) (models.ModVersionInfo, bool, error) {
	meta, err := LoadMetadata(modsPath)
	if err != nil {
		return models.ModVersionInfo{}, false, err
	}
	r, ok := meta.Find(modID)
	if !ok {
		return models.ModVersionInfo{}, false, nil
	}
	info := r.VersionInfo()
	if info.ModID == "" {
		info.ModID = modID
	}
	return info, true, nil
}

package mods

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// MetadataFileName is the sidecar holding catalog details of installed mods,
// keyed by BaseName.
const MetadataFileName = ".entwine_metadata.json"

// Record is one sidecar entry.
type Record struct {
	models.InstalledMod
	SilkVersion    string `json:"silkVersion,omitempty"`
	MinSilkVersion string `json:"minSilkVersion,omitempty"`
	MaxSilkVersion string `json:"maxSilkVersion,omitempty"`
}

// VersionInfo returns the compatibility declaration stored with the record.
func (r Record) VersionInfo() models.ModVersionInfo {
	info := models.ModVersionInfo{
		ModID:       r.ID,
		Version:     r.Version,
		SilkVersion: r.SilkVersion,
	}
	if r.MinSilkVersion != "" {
		v := r.MinSilkVersion
		info.MinSilkVersion = &v
	}
	if r.MaxSilkVersion != "" {
		v := r.MaxSilkVersion
		info.MaxSilkVersion = &v
	}
	return info
}

// Metadata is the decoded sidecar.
type Metadata map[string]Record

// Find looks a mod up by sidecar key or by catalog id.
func (m Metadata) Find(modID string) (Record, bool) {
	if r, ok := m[modID]; ok {
		return r, true
	}
	for _, r := range m {
		if r.ID == modID {
			return r, true
		}
	}
	return Record{}, false
}

func newRecord(mod models.Mod, installedName, iconURL string) Record {
	return Record{
		InstalledMod: models.InstalledMod{
			ID:          mod.ID,
			Name:        mod.Name,
			FileName:    installedName,
			Enabled:     true,
			Version:     mod.Version,
			Author:      mod.Author,
			Description: mod.Description,
			IconPath:    iconURL,
		},
		SilkVersion:    mod.SilkVersion,
		MinSilkVersion: mod.MinSilkVersion,
		MaxSilkVersion: mod.MaxSilkVersion,
	}
}

func metadataPath(modsPath string) string {
	return filepath.Join(modsPath, MetadataFileName)
}

// LoadMetadata reads the sidecar in modsPath. A missing sidecar yields an
// empty map.
func LoadMetadata(modsPath string) (Metadata, error) {
	data, err := os.ReadFile(metadataPath(modsPath))
	if errors.Is(err, fs.ErrNotExist) {
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, err
	}

	meta := Metadata{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse %s: %w", MetadataFileName, err)
	}
	return meta, nil
}

func saveMetadata(modsPath string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(metadataPath(modsPath), data, 0644)
}

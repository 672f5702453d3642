package models

// Mod is a catalog entry as served by the mod registry. It is read-only input.
type Mod struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Version        string  `json:"version"`
	Author         string  `json:"author"`
	FileName       string  `json:"fileName"`
	FilePath       string  `json:"filePath"` // download source, relative to the catalog base URL
	FileSize       uint64  `json:"fileSize"`
	IconPath       string  `json:"iconPath"`
	UploadDate     string  `json:"uploadDate"`
	Downloads      uint64  `json:"downloads"`
	LastDownloaded *string `json:"lastDownloaded"`

	// Optional compatibility declaration against the Silk loader.
	SilkVersion    string `json:"silkVersion,omitempty"`
	MinSilkVersion string `json:"minSilkVersion,omitempty"`
	MaxSilkVersion string `json:"maxSilkVersion,omitempty"`
}

// VersionInfo returns the compatibility declaration carried by the catalog entry.
func (m *Mod) VersionInfo() ModVersionInfo {
	info := ModVersionInfo{
		ModID:       m.ID,
		Version:     m.Version,
		SilkVersion: m.SilkVersion,
	}
	if m.MinSilkVersion != "" {
		v := m.MinSilkVersion
		info.MinSilkVersion = &v
	}
	if m.MaxSilkVersion != "" {
		v := m.MaxSilkVersion
		info.MaxSilkVersion = &v
	}
	return info
}

// InstalledMod is derived from the mods directory on every query and never cached.
type InstalledMod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	Enabled     bool   `json:"enabled"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
	IconPath    string `json:"iconPath"`
}

// AppStatus is a snapshot of the selected game installation.
type AppStatus struct {
	SilkInstalled bool    `json:"silkInstalled"`
	GamePath      *string `json:"gamePath"`
	ModsPath      *string `json:"modsPath"`
}

// SilkVersion describes an available loader upgrade.
type SilkVersion struct {
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl"`
}

// ModVersionInfo declares the Silk versions a mod was built for.
type ModVersionInfo struct {
	ModID          string  `json:"modId"`
	Version        string  `json:"version"`
	SilkVersion    string  `json:"silkVersion"`
	MinSilkVersion *string `json:"minSilkVersion,omitempty"`
	MaxSilkVersion *string `json:"maxSilkVersion,omitempty"`
}

// Declared reports whether the record carries any compatibility information.
func (v ModVersionInfo) Declared() bool {
	return v.SilkVersion != "" || v.MinSilkVersion != nil || v.MaxSilkVersion != nil
}

// LaunchMethod selects how the game is started.
type LaunchMethod string

const (
	LaunchSteam      LaunchMethod = "steam"
	LaunchExecutable LaunchMethod = "executable"
)

// Valid reports whether m is a known launch method.
func (m LaunchMethod) Valid() bool {
	return m == LaunchSteam || m == LaunchExecutable
}

// AppSettings holds user preferences.
type AppSettings struct {
	LaunchMethod LaunchMethod `mapstructure:"launch_method" json:"launchMethod" yaml:"launch_method"`
}

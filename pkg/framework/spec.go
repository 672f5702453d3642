// Package framework installs, upgrades and removes the runtime frameworks that
// load mods into the game. Silk and BepInEx share one lifecycle; a Spec
// captures what differs between them.
package framework

import (
	"fmt"
	"strings"
)

// Spec describes one framework's on-disk layout and release source.
type Spec struct {
	Name string

	// Marker is the version file whose presence means "installed",
	// relative to the game directory, slash-separated.
	Marker string

	// Roots are the top-level game directory entries owned by the framework.
	// Only these are extracted from a release archive and swapped on install.
	Roots []string

	// Required entries must be present in an extracted archive.
	Required []string

	// Preserved subtrees belong to the user. They survive reinstall and uninstall.
	Preserved []string

	// GitHub repository publishing the releases.
	Owner string
	Repo  string

	// AssetName returns the release asset holding the given version.
	AssetName func(version string) string

	// LatestURL optionally points at a plain-text file naming the newest
	// version. When empty the newest release is used.
	LatestURL string
}

// Silk is the primary mod loader.
var Silk = Spec{
	Name:      "Silk",
	Marker:    "Silk/version.txt",
	Roots:     []string{"winhttp.dll", "doorstop_config.ini", "Silk"},
	Required:  []string{"Silk"},
	Preserved: []string{"Silk/Mods", "Silk/Config"},
	Owner:     "SilkModding",
	Repo:      "Silk",
	AssetName: func(v string) string { return fmt.Sprintf("Silk-v%s.zip", v) },
	LatestURL: "https://raw.githubusercontent.com/SilkModding/Silk/master/version",
}

// BepInEx is the secondary plugin injector. Only its BepInEx/ tree is taken
// from the release; Silk's doorstop stays in charge of injection.
var BepInEx = Spec{
	Name:      "BepInEx",
	Marker:    "BepInEx/version.txt",
	Roots:     []string{"BepInEx"},
	Required:  []string{"BepInEx/core"},
	Preserved: []string{"BepInEx/plugins", "BepInEx/config"},
	Owner:     "BepInEx",
	Repo:      "BepInEx",
	AssetName: func(v string) string { return fmt.Sprintf("BepInEx_win_x64_%s.zip", v) },
}

// DownloadURL returns the conventional GitHub download URL for version.
func (s Spec) DownloadURL(version string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download/v%s/%s",
		s.Owner, s.Repo, version, s.AssetName(version))
}

// markerRoot is the root that carries the marker. It is swapped last.
func (s Spec) markerRoot() string {
	root, _, _ := strings.Cut(s.Marker, "/")
	return root
}

// swapOrder lists roots with the marker root last.
func (s Spec) swapOrder() []string {
	mr := s.markerRoot()
	order := make([]string, 0, len(s.Roots))
	for _, r := range s.Roots {
		if r != mr {
			order = append(order, r)
		}
	}
	return append(order, mr)
}

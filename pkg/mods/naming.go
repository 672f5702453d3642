// Package mods manages mod files inside a Silk mods directory: scanning,
// installing, enabling and disabling, and removal.
package mods

import (
	"path/filepath"
	"strings"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/archive"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
)

const (
	// DisabledSuffix marks a mod file or folder the loader skips.
	DisabledSuffix = ".disabled"

	dllExt = ".dll"
)

// IsDisabledName reports whether name carries the disabled suffix.
func IsDisabledName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), DisabledSuffix)
}

// CanonicalName returns the enabled form of a mod file name.
func CanonicalName(name string) string {
	if IsDisabledName(name) {
		return name[:len(name)-len(DisabledSuffix)]
	}
	return name
}

// DisabledName returns the disabled form of a mod file name.
func DisabledName(name string) string {
	return CanonicalName(name) + DisabledSuffix
}

// InstalledName is the directory entry a catalog file occupies once installed:
// archives become a folder named after the archive, anything else keeps its name.
func InstalledName(catalogFileName string) string {
	if ext := archive.ArchiveExt(catalogFileName); ext != "" {
		return catalogFileName[:len(catalogFileName)-len(ext)]
	}
	return catalogFileName
}

// BaseName is the sidecar metadata key for a file name in any form.
func BaseName(name string) string {
	name = CanonicalName(name)
	if ext := archive.ArchiveExt(name); ext != "" {
		return name[:len(name)-len(ext)]
	}
	if strings.HasSuffix(strings.ToLower(name), dllExt) {
		return name[:len(name)-len(dllExt)]
	}
	return name
}

func isDLL(name string) bool {
	return strings.HasSuffix(strings.ToLower(CanonicalName(name)), dllExt)
}

// validateFileName rejects names that would escape modsPath or collide with
// bookkeeping files.
func validateFileName(name string) error {
	switch {
	case name == "":
		return apperrors.NewInvalidArgumentError("mod file name is required")
	case name == "." || name == ".." || strings.HasPrefix(name, "."):
		return apperrors.NewInvalidArgumentError("mod file name must not be hidden: " + name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return apperrors.NewInvalidArgumentError("mod file name must not contain a path: " + name)
	}
	return nil
}

// LockKey is the lock map key guarding mutations of modsPath. Framework
// installs take the same key while they swap the tree holding modsPath.
func LockKey(modsPath string) string {
	return lockmap.PathKey(modsPath)
}

package mods

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/archive"
	"github.com/huanfeng/entwine-cli/pkg/compat"
	"github.com/huanfeng/entwine-cli/pkg/icons"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// Fetcher resolves catalog paths and downloads mod payloads.
// *registry.Client satisfies it.
type Fetcher interface {
	BaseURL() string
	ResolveURL(path string) string
	Download(ctx context.Context, url, dir string) (string, error)
}

// InstallOptions tunes a mod install.
type InstallOptions struct {
	// RequireCompatible rejects mods whose declared Silk range excludes
	// SilkVersion.
	RequireCompatible bool
	SilkVersion       string
}

// Installer adds and removes mods. Mutations of one mods directory are
// serialized through the lock map.
type Installer struct {
	scanner *Scanner
	fetcher Fetcher
	locks   *lockmap.Map
	logger  utils.Logger
}

// NewInstaller creates an installer. A nil locks map gets a private one.
func NewInstaller(scanner *Scanner, fetcher Fetcher, locks *lockmap.Map, logger utils.Logger) *Installer {
	if locks == nil {
		locks = &lockmap.Map{}
	}
	return &Installer{
		scanner: scanner,
		fetcher: fetcher,
		locks:   locks,
		logger:  utils.OrGlobal(logger),
	}
}

// Install downloads mod into modsPath. A mod whose file name is already
// installed, in either enabled or disabled form, is rejected before anything
// is written.
func (i *Installer) Install(ctx context.Context, mod models.Mod, modsPath string, opts InstallOptions) error {
	if err := validateFileName(mod.FileName); err != nil {
		return err
	}
	if IsDisabledName(mod.FileName) {
		return apperrors.NewInvalidArgumentError("catalog file name must not be disabled: " + mod.FileName)
	}
	isArchive := archive.IsArchiveName(mod.FileName)
	if !isArchive && !isDLL(mod.FileName) {
		return apperrors.NewInvalidArgumentError("unsupported mod file type: " + mod.FileName)
	}
	if strings.TrimSpace(mod.FilePath) == "" {
		return apperrors.NewInvalidArgumentError("catalog entry has no download path: " + mod.FileName)
	}
	if opts.RequireCompatible {
		if err := compat.Require(mod.ID, opts.SilkVersion, mod.VersionInfo()); err != nil {
			return err
		}
	}

	unlock := i.locks.Lock(LockKey(modsPath))
	defer unlock()

	target := InstalledName(mod.FileName)
	if err := i.checkCollision(modsPath, target); err != nil {
		return err
	}

	if err := os.MkdirAll(modsPath, 0755); err != nil {
		return apperrors.NewFileSystemError("failed to create mods directory", err).WithContext("path", modsPath)
	}

	i.logger.Info("Installing %s (%s) into %s", mod.Name, mod.FileName, modsPath)

	tmp, err := i.fetcher.Download(ctx, i.fetcher.ResolveURL(mod.FilePath), modsPath)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	targetPath := filepath.Join(modsPath, target)
	if isArchive {
		err = i.placeArchive(ctx, tmp, modsPath, targetPath)
	} else {
		err = placeFile(tmp, targetPath)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to install %s", mod.FileName), err).
			WithContext("path", targetPath)
	}

	if err := i.recordInstall(mod, modsPath, target); err != nil {
		if rmErr := os.RemoveAll(targetPath); rmErr != nil {
			i.logger.Error("Failed to roll back %s: %v", targetPath, rmErr)
		}
		return apperrors.NewFileSystemError("failed to write mod metadata", err).WithContext("path", modsPath)
	}

	i.logger.Info("%s installed as %s", mod.Name, target)
	return nil
}

// checkCollision compares canonical names case-insensitively, matching both
// the scanner's view and any stray entry occupying either form on disk.
func (i *Installer) checkCollision(modsPath, target string) error {
	installed, err := i.scanner.Scan(modsPath)
	if err != nil {
		return err
	}
	for _, m := range installed {
		if strings.EqualFold(CanonicalName(m.FileName), target) {
			return apperrors.NewAlreadyInstalledError(m.FileName)
		}
	}
	for _, name := range []string{target, DisabledName(target)} {
		if _, err := os.Lstat(filepath.Join(modsPath, name)); err == nil {
			return apperrors.NewAlreadyInstalledError(name)
		}
	}
	return nil
}

// placeFile publishes a downloaded file under its final name.
func placeFile(tmp, target string) error {
	if err := os.Chmod(tmp, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// placeArchive unpacks into a hidden sibling directory and renames it into
// place once extraction completed.
func (i *Installer) placeArchive(ctx context.Context, tmp, modsPath, target string) error {
	stage, err := os.MkdirTemp(modsPath, ".entwine-extract-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	res, err := archive.Extract(ctx, tmp, stage, archive.Options{})
	if err != nil {
		return err
	}
	if res.Files == 0 {
		return errors.New("archive is empty")
	}
	i.logger.Debug("Extracted %d files (%s)", res.Files, utils.FormatBytes(res.Bytes))

	if err := os.Chmod(stage, 0755); err != nil {
		return err
	}
	return os.Rename(stage, target)
}

func (i *Installer) recordInstall(mod models.Mod, modsPath, target string) error {
	meta, err := LoadMetadata(modsPath)
	if err != nil {
		i.logger.Warn("Replacing unreadable mod metadata in %s: %v", modsPath, err)
	}
	meta[BaseName(target)] = newRecord(mod, target, icons.ResolveURL(i.fetcher.BaseURL(), mod.IconPath))
	return saveMetadata(modsPath, meta)
}

// Uninstall deletes fileName in whichever form exists and drops its metadata.
// Per-mod configuration is left alone.
func (i *Installer) Uninstall(modsPath, fileName string) error {
	if err := validateFileName(fileName); err != nil {
		return err
	}

	unlock := i.locks.Lock(LockKey(modsPath))
	defer unlock()

	canonical := CanonicalName(fileName)
	removed := 0
	for _, name := range []string{canonical, DisabledName(canonical)} {
		path := filepath.Join(modsPath, name)
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return apperrors.NewFileSystemError(fmt.Sprintf("failed to remove %s", name), err).WithContext("path", path)
		}
		removed++
	}
	if removed == 0 {
		return apperrors.NewPathNotFoundError(filepath.Join(modsPath, fileName), fmt.Sprintf("mod %s is not installed", fileName))
	}

	meta, err := LoadMetadata(modsPath)
	if err != nil {
		i.logger.Warn("Cannot update mod metadata in %s: %v", modsPath, err)
	} else if _, ok := meta[BaseName(canonical)]; ok {
		delete(meta, BaseName(canonical))
		if err := saveMetadata(modsPath, meta); err != nil {
			i.logger.Warn("Cannot update mod metadata in %s: %v", modsPath, err)
		}
	}

	i.logger.Info("Uninstalled %s", canonical)
	return nil
}

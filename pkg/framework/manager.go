package framework

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/archive"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/registry"
	"github.com/huanfeng/entwine-cli/pkg/utils"
	"github.com/huanfeng/entwine-cli/pkg/versions"
)

// Source is the remote side of a framework: its release listing and the
// transport for release archives. *registry.Client satisfies it.
type Source interface {
	ListReleases(ctx context.Context, owner, repo string) ([]registry.Release, error)
	FetchText(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, url, dir string) (string, error)
}

// Manager runs the install lifecycle of one framework. Managers for different
// frameworks should share one lock map so that every mutation of a game
// directory is serialized.
type Manager struct {
	spec   Spec
	source Source
	locks  *lockmap.Map
	logger utils.Logger
}

// NewManager creates a manager for spec. A nil locks map gets a private one.
func NewManager(spec Spec, source Source, locks *lockmap.Map, logger utils.Logger) *Manager {
	if locks == nil {
		locks = &lockmap.Map{}
	}
	return &Manager{
		spec:   spec,
		source: source,
		locks:  locks,
		logger: utils.OrGlobal(logger).WithField("framework", spec.Name),
	}
}

// Name returns the framework name.
func (m *Manager) Name() string {
	return m.spec.Name
}

// Spec returns the framework description.
func (m *Manager) Spec() Spec {
	return m.spec
}

func (m *Manager) markerPath(gamePath string) string {
	return filepath.Join(gamePath, filepath.FromSlash(m.spec.Marker))
}

// IsInstalled reports whether the version marker exists in gamePath.
func (m *Manager) IsInstalled(gamePath string) bool {
	return utils.IsFile(m.markerPath(gamePath))
}

// Version returns the installed version read from the marker.
func (m *Manager) Version(gamePath string) (string, error) {
	data, err := os.ReadFile(m.markerPath(gamePath))
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperrors.NewNotInstalledError(m.spec.Name, gamePath)
	}
	if err != nil {
		return "", apperrors.NewFileSystemError(fmt.Sprintf("failed to read %s version", m.spec.Name), err).
			WithContext("path", m.markerPath(gamePath))
	}
	return strings.TrimSpace(string(data)), nil
}

// LatestVersion returns the newest published version.
func (m *Manager) LatestVersion(ctx context.Context) (string, error) {
	if m.spec.LatestURL != "" {
		text, err := m.source.FetchText(ctx, m.spec.LatestURL)
		if err != nil {
			return "", err
		}
		v := versions.Normalize(text)
		if !versions.Valid(v) {
			return "", apperrors.NewNetworkError(
				fmt.Sprintf("registry returned an invalid %s version %q", m.spec.Name, text), nil)
		}
		return v, nil
	}

	releases, err := m.installable(ctx)
	if err != nil {
		return "", err
	}
	if len(releases) == 0 {
		return "", apperrors.NewVersionNotFoundError(m.spec.Name, "latest")
	}
	return releases[0].Version, nil
}

// AvailableVersions lists installable versions, newest first.
func (m *Manager) AvailableVersions(ctx context.Context) ([]string, error) {
	releases, err := m.installable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(releases))
	for _, r := range releases {
		out = append(out, r.Version)
	}
	return out, nil
}

// installable returns the releases that ship this framework's archive.
func (m *Manager) installable(ctx context.Context) ([]registry.Release, error) {
	releases, err := m.source.ListReleases(ctx, m.spec.Owner, m.spec.Repo)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(releases, func(r registry.Release) bool {
		_, ok := r.AssetURL(m.spec.AssetName(r.Version))
		return !ok
	}), nil
}

// CheckForUpdates returns the upgrade descriptor when a newer version than the
// installed one is published. It returns nil when the framework is not
// installed or already current.
func (m *Manager) CheckForUpdates(ctx context.Context, gamePath string) (*models.SilkVersion, error) {
	if !m.IsInstalled(gamePath) {
		return nil, nil
	}
	installed, err := m.Version(gamePath)
	if err != nil {
		return nil, err
	}
	latest, err := m.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}

	newer, err := versions.Newer(latest, installed)
	if err != nil {
		m.logger.Warn("Cannot compare %s versions %q and %q: %v", m.spec.Name, installed, latest, err)
		return nil, nil
	}
	if !newer {
		return nil, nil
	}
	return &models.SilkVersion{Version: latest, DownloadURL: m.spec.DownloadURL(latest)}, nil
}

// Install installs the latest version.
func (m *Manager) Install(ctx context.Context, gamePath string) error {
	latest, err := m.LatestVersion(ctx)
	if err != nil {
		return err
	}
	return m.InstallVersion(ctx, latest, gamePath)
}

// InstallVersion installs version into gamePath, replacing any installed
// version. The prior installation stays intact until the staged one is
// complete and validated.
func (m *Manager) InstallVersion(ctx context.Context, version, gamePath string) error {
	version = versions.Normalize(version)

	unlock := m.lock(gamePath)
	defer unlock()

	if !utils.IsDir(gamePath) {
		return apperrors.NewPathNotFoundError(gamePath, "game directory does not exist")
	}
	if err := m.recoverLocked(gamePath); err != nil {
		return err
	}

	url, err := m.assetURL(ctx, version)
	if err != nil {
		return err
	}

	m.logger.Info("Installing %s %s into %s", m.spec.Name, version, gamePath)

	st, err := newStaging(gamePath)
	if err != nil {
		return apperrors.NewFileSystemError("failed to create staging directory", err).WithContext("path", gamePath)
	}
	if err := m.stage(ctx, st, url, version); err != nil {
		m.removeStaging(st)
		return err
	}

	j := &journal{Framework: m.spec.Name, Version: version, Preserved: m.spec.Preserved}
	for _, root := range m.spec.swapOrder() {
		if !utils.Exists(st.in(newDirName, root)) {
			continue
		}
		j.Roots = append(j.Roots, journalRoot{Name: root, HadPrior: utils.Exists(st.live(root))})
	}

	if err := m.apply(st, j, gamePath, fmt.Sprintf("failed to install %s %s", m.spec.Name, version)); err != nil {
		return err
	}
	m.logger.Info("%s %s installed", m.spec.Name, version)
	return nil
}

// apply runs the journaled swap. The staging area is removed afterwards unless
// it still holds files of the previous installation, which recovery restores.
func (m *Manager) apply(st *staging, j *journal, gamePath, failure string) error {
	if err := st.swap(j); err != nil {
		fsErr := apperrors.NewFileSystemError(failure, err).WithContext("path", gamePath)
		if st.pending(j) {
			m.logger.Error("Keeping %s for recovery: it still holds files of the previous installation", st.dir)
			return fsErr.WithSuggestion("Run 'entwine doctor --fix' to restore them")
		}
		m.removeStaging(st)
		return fsErr
	}
	m.removeStaging(st)
	return nil
}

func (m *Manager) removeStaging(st *staging) {
	if err := st.remove(); err != nil {
		m.logger.Warn("Failed to remove staging directory %s: %v", st.dir, err)
		return
	}
	_ = os.Remove(workDir(st.gamePath)) // only succeeds when empty
}

// assetURL resolves version to its archive URL, failing before any mutation
// when the version is not published.
func (m *Manager) assetURL(ctx context.Context, version string) (string, error) {
	releases, err := m.installable(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range releases {
		if r.Version == version {
			url, _ := r.AssetURL(m.spec.AssetName(version))
			return url, nil
		}
	}
	return "", apperrors.NewVersionNotFoundError(m.spec.Name, version)
}

// stage downloads and unpacks the release into the staging tree and writes the
// version marker last.
func (m *Manager) stage(ctx context.Context, st *staging, url, version string) error {
	archivePath, err := m.source.Download(ctx, url, st.dir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(st.newTree(), 0755); err != nil {
		return apperrors.NewFileSystemError("failed to create staging directory", err)
	}
	res, err := archive.Extract(ctx, archivePath, st.newTree(), archive.Options{
		Filter: archive.RootFilter(m.spec.Roots...),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to extract %s %s", m.spec.Name, version), err)
	}
	m.logger.Debug("Extracted %d files (%s) for %s %s", res.Files, utils.FormatBytes(res.Bytes), m.spec.Name, version)

	if err := os.Remove(archivePath); err != nil {
		m.logger.Debug("Failed to remove downloaded archive %s: %v", archivePath, err)
	}

	for _, req := range m.spec.Required {
		if !utils.Exists(st.in(newDirName, req)) {
			return apperrors.NewFileSystemError(
				fmt.Sprintf("%s %s archive is missing %s", m.spec.Name, version, req), nil)
		}
	}

	marker := st.in(newDirName, m.spec.Marker)
	if err := utils.WriteFileAtomic(marker, []byte(version+"\n"), 0644); err != nil {
		return apperrors.NewFileSystemError("failed to write version marker", err)
	}
	return nil
}

// Uninstall removes the framework from gamePath. User subtrees listed as
// preserved are left in place. The framework's roots are moved aside through
// the same journal as an install, so a failure puts them all back.
func (m *Manager) Uninstall(ctx context.Context, gamePath string) error {
	unlock := m.lock(gamePath)
	defer unlock()

	if err := m.recoverLocked(gamePath); err != nil {
		return err
	}
	if !m.IsInstalled(gamePath) {
		return apperrors.NewNotInstalledError(m.spec.Name, gamePath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.logger.Info("Uninstalling %s from %s", m.spec.Name, gamePath)

	st, err := newStaging(gamePath)
	if err != nil {
		return apperrors.NewFileSystemError("failed to create staging directory", err).WithContext("path", gamePath)
	}
	j := &journal{Framework: m.spec.Name, Preserved: m.spec.Preserved}
	for _, root := range m.spec.swapOrder() {
		if utils.Exists(st.live(root)) {
			j.Roots = append(j.Roots, journalRoot{Name: root, HadPrior: true, Remove: true})
		}
	}

	if err := m.apply(st, j, gamePath, fmt.Sprintf("failed to uninstall %s", m.spec.Name)); err != nil {
		return err
	}
	m.logger.Info("%s uninstalled", m.spec.Name)
	return nil
}

// Recover settles swaps interrupted by a crash: unfinished swaps are rolled
// back and committed ones are completed.
func (m *Manager) Recover(gamePath string) error {
	unlock := m.lock(gamePath)
	defer unlock()
	return m.recoverLocked(gamePath)
}

func (m *Manager) recoverLocked(gamePath string) error {
	n, err := recoverStaging(gamePath)
	if n > 0 {
		m.logger.Warn("Recovered %d interrupted install(s) in %s", n, gamePath)
	}
	if err != nil {
		return apperrors.NewFileSystemError("failed to recover interrupted install", err).
			WithContext("path", gamePath)
	}
	return nil
}

// lock takes the game directory lock and then every user subtree a swap
// moves, so mod and config writers never see a half-swapped tree.
func (m *Manager) lock(gamePath string) func() {
	unlocks := []func(){m.locks.Lock(LockKey(gamePath))}
	subtrees := slices.Clone(m.spec.Preserved)
	slices.Sort(subtrees)
	for _, rel := range subtrees {
		unlocks = append(unlocks, m.locks.Lock(lockmap.PathKey(filepath.Join(gamePath, filepath.FromSlash(rel)))))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// LockKey is the lock map key guarding mutations of gamePath.
func LockKey(gamePath string) string {
	if abs, err := filepath.Abs(gamePath); err == nil {
		gamePath = abs
	}
	return lockmap.Key("game", filepath.Clean(gamePath))
}

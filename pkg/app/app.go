// Package app wires the components into the command surface. Each method
// delegates to exactly one component operation.
package app

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/huanfeng/entwine-cli/internal/config"
	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/compat"
	"github.com/huanfeng/entwine-cli/pkg/framework"
	"github.com/huanfeng/entwine-cli/pkg/gamepath"
	"github.com/huanfeng/entwine-cli/pkg/icons"
	"github.com/huanfeng/entwine-cli/pkg/launcher"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/modconfig"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/mods"
	"github.com/huanfeng/entwine-cli/pkg/registry"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// App is the backend behind every command.
type App struct {
	cfg    *config.Config
	logger utils.Logger

	locks   *lockmap.Map
	client  *registry.Client
	cache   *registry.CacheManager
	icons   *icons.Cache
	silk    *framework.Manager
	bepinex *framework.Manager

	scanner   *mods.Scanner
	installer *mods.Installer
	toggler   *mods.Toggler
	configs   *modconfig.Store
	checker   *compat.Checker

	paths     *gamepath.Store
	inspector *gamepath.Inspector
	launcher  *launcher.Launcher
	detect    func() (string, bool)
}

type options struct {
	httpClient *http.Client
	progress   io.Writer
	logger     utils.Logger
	detect     func() (string, bool)
	run        launcher.Runner
}

// Option configures New.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for every remote call.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithProgress renders download progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger utils.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDetector replaces Steam library detection. A nil detect disables it.
func WithDetector(detect func() (string, bool)) Option {
	return func(o *options) { o.detect = detect }
}

// WithRunner replaces the process starter used by Launch.
func WithRunner(run launcher.Runner) Option {
	return func(o *options) { o.run = run }
}

// New builds the application and loads the stored game path. When none is
// stored, a detected Steam installation is used for this process only.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{detect: gamepath.Detect}
	for _, opt := range opts {
		opt(&o)
	}
	logger := utils.OrGlobal(o.logger)

	cache := registry.NewCacheManager(cfg.Paths.CacheDir, 0)
	clientOpts := []registry.Option{registry.WithCache(cache), registry.WithLogger(logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, registry.WithHTTPClient(o.httpClient))
	}
	if o.progress != nil {
		clientOpts = append(clientOpts, registry.WithProgress(o.progress))
	}
	client := registry.NewClient(cfg.RegistryClientConfig(), clientOpts...)

	silkSpec := framework.Silk
	if cfg.Registry.SilkVersionURL != "" {
		silkSpec.LatestURL = cfg.Registry.SilkVersionURL
	}

	locks := &lockmap.Map{}
	scanner := mods.NewScanner(logger)
	silk := framework.NewManager(silkSpec, client, locks, logger)
	paths := gamepath.NewStore(cfg.Paths.StateFile, locks, logger)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		locks:     locks,
		client:    client,
		cache:     cache,
		icons:     icons.NewCache(filepath.Join(cache.Dir(), "icons"), client, logger),
		silk:      silk,
		bepinex:   framework.NewManager(framework.BepInEx, client, locks, logger),
		scanner:   scanner,
		installer: mods.NewInstaller(scanner, client, locks, logger),
		toggler:   mods.NewToggler(locks, logger),
		configs:   modconfig.NewStore(locks, logger),
		checker:   compat.NewChecker(silk, scanner, logger),
		paths:     paths,
		inspector: gamepath.NewInspector(paths, silk),
		launcher:  launcher.New(o.run, logger),
		detect:    o.detect,
	}

	if err := paths.Load(); err != nil && !apperrors.IsRecoverable(err) {
		return nil, err
	}
	if o.detect != nil {
		paths.Detect(o.detect)
	}
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Cache returns the catalog cache.
func (a *App) Cache() *registry.CacheManager {
	return a.cache
}

// GamePath returns the current game path or an error telling the user to
// select one.
func (a *App) GamePath() (string, error) {
	gp, ok := a.paths.GamePath()
	if !ok {
		return "", apperrors.NewInvalidGameDirectoryError("", "no game path set").
			WithSuggestions([]string{"Run 'entwine game set <path>'", "Run 'entwine game detect --save'"})
	}
	return gp, nil
}

// ModsPath returns the mods directory of the current game path.
func (a *App) ModsPath() (string, error) {
	gp, err := a.GamePath()
	if err != nil {
		return "", err
	}
	return gamepath.ModsPath(gp), nil
}

// GetAppStatus reports the selected installation.
func (a *App) GetAppStatus(ctx context.Context) models.AppStatus {
	return a.inspector.Status()
}

// SetGamePath validates and stores path.
func (a *App) SetGamePath(ctx context.Context, path string) (models.AppStatus, error) {
	return a.inspector.SetGamePath(path)
}

// DetectGamePath searches the usual Steam libraries.
func (a *App) DetectGamePath() (string, bool) {
	if a.detect == nil {
		return "", false
	}
	return a.detect()
}

// FetchMods returns the remote catalog. With offline set, the last cached
// catalog is returned instead and no request is made.
func (a *App) FetchMods(ctx context.Context, offline bool) ([]models.Mod, error) {
	if !offline {
		return a.client.FetchMods(ctx)
	}
	cached, err := a.cache.GetCatalog()
	if err != nil {
		return nil, apperrors.NewFileSystemError("failed to read cached catalog", err).WithContext("dir", a.cache.Dir())
	}
	if cached == nil {
		return nil, apperrors.NewPathNotFoundError(a.cache.Dir(), "no cached catalog").
			WithSuggestion("Run 'entwine catalog' while online first")
	}
	if cached.Stale {
		a.logger.Warn("Cached catalog from %s is out of date", cached.FetchedAt.Format("2006-01-02 15:04"))
	}
	return cached.Mods, nil
}

// FindMod looks a mod up in the catalog by id or file name.
func (a *App) FindMod(ctx context.Context, idOrFile string, offline bool) (models.Mod, error) {
	catalog, err := a.FetchMods(ctx, offline)
	if err != nil {
		return models.Mod{}, err
	}
	for _, m := range catalog {
		if m.ID == idOrFile || strings.EqualFold(m.FileName, idOrFile) {
			return m, nil
		}
	}
	return models.Mod{}, apperrors.NewInvalidArgumentError("mod " + idOrFile + " is not in the catalog").
		WithSuggestion("Run 'entwine catalog' to list available mods")
}

// ModIcon returns a local thumbnail of the mod's icon.
func (a *App) ModIcon(ctx context.Context, mod models.Mod) (string, error) {
	return a.icons.Thumbnail(ctx, icons.ResolveURL(a.client.BaseURL(), mod.IconPath))
}

// InstallSilk installs the latest Silk.
func (a *App) InstallSilk(ctx context.Context, gamePath string) error {
	return a.silk.Install(ctx, gamePath)
}

// UninstallSilk removes Silk, keeping user mods and configuration.
func (a *App) UninstallSilk(ctx context.Context, gamePath string) error {
	return a.silk.Uninstall(ctx, gamePath)
}

// GetSilkVersion returns the installed Silk version.
func (a *App) GetSilkVersion(gamePath string) (string, error) {
	return a.silk.Version(gamePath)
}

// GetLatestSilkVersion returns the newest published Silk version.
func (a *App) GetLatestSilkVersion(ctx context.Context) (string, error) {
	return a.silk.LatestVersion(ctx)
}

// CheckForSilkUpdates returns the available upgrade, or nil.
func (a *App) CheckForSilkUpdates(ctx context.Context, gamePath string) (*models.SilkVersion, error) {
	return a.silk.CheckForUpdates(ctx, gamePath)
}

// ListAvailableSilkVersions lists installable Silk versions, newest first.
func (a *App) ListAvailableSilkVersions(ctx context.Context) ([]string, error) {
	return a.silk.AvailableVersions(ctx)
}

// InstallSilkVersion installs or replaces Silk with version.
func (a *App) InstallSilkVersion(ctx context.Context, version, gamePath string) error {
	return a.silk.InstallVersion(ctx, version, gamePath)
}

// GetInstalledMods scans modsPath.
func (a *App) GetInstalledMods(modsPath string) ([]models.InstalledMod, error) {
	return a.scanner.Scan(modsPath)
}

// InstallMod downloads and installs a catalog mod.
func (a *App) InstallMod(ctx context.Context, mod models.Mod, modsPath string, opts mods.InstallOptions) error {
	return a.installer.Install(ctx, mod, modsPath, opts)
}

// ToggleMod enables or disables an installed mod.
func (a *App) ToggleMod(modsPath, fileName string, enable bool) error {
	return a.toggler.Toggle(modsPath, fileName, enable)
}

// UninstallMod removes an installed mod. Its configuration is kept.
func (a *App) UninstallMod(modsPath, fileName string) error {
	return a.installer.Uninstall(modsPath, fileName)
}

// CheckModCompatibility reports whether an installed mod supports the
// installed Silk version.
func (a *App) CheckModCompatibility(gamePath, modsPath, modID string) (bool, error) {
	return a.checker.Check(gamePath, modsPath, modID)
}

// GetModConfig returns a mod's configuration document.
func (a *App) GetModConfig(gamePath, modID string) (models.ModConfig, error) {
	return a.configs.Get(gamePath, modID)
}

// SaveModConfig replaces a mod's configuration document.
func (a *App) SaveModConfig(gamePath, modID string, doc models.ModConfig) error {
	return a.configs.Save(gamePath, modID, doc)
}

// SetModConfigValue sets one top-level key.
func (a *App) SetModConfigValue(gamePath, modID, key string, value models.ConfigValue) error {
	return a.configs.SetValue(gamePath, modID, key, value)
}

// SetModConfigPath sets a nested key, creating intermediate maps.
func (a *App) SetModConfigPath(gamePath, modID string, keyPath []string, value models.ConfigValue) error {
	return a.configs.SetPath(gamePath, modID, keyPath, value)
}

// ListModConfigs lists the mod ids that have a configuration document.
func (a *App) ListModConfigs(gamePath string) ([]string, error) {
	return a.configs.List(gamePath)
}

// DeleteModConfig removes a mod's configuration document.
func (a *App) DeleteModConfig(gamePath, modID string) error {
	return a.configs.Delete(gamePath, modID)
}

// PendingFrameworkRecovery reports whether an interrupted install left
// staging data behind in gamePath.
func (a *App) PendingFrameworkRecovery(gamePath string) bool {
	return framework.PendingRecovery(gamePath)
}

// RecoverFrameworks finishes or rolls back framework swaps interrupted by a
// crash. Mutating operations do this on their own; doctor calls it directly.
func (a *App) RecoverFrameworks(gamePath string) error {
	if err := a.silk.Recover(gamePath); err != nil {
		return err
	}
	return a.bepinex.Recover(gamePath)
}

// IsBepInExInstalled reports whether BepInEx is installed.
func (a *App) IsBepInExInstalled(gamePath string) bool {
	return a.bepinex.IsInstalled(gamePath)
}

// GetBepInExVersion returns the installed BepInEx version.
func (a *App) GetBepInExVersion(gamePath string) (string, error) {
	return a.bepinex.Version(gamePath)
}

// InstallBepInEx installs the latest BepInEx.
func (a *App) InstallBepInEx(ctx context.Context, gamePath string) error {
	return a.bepinex.Install(ctx, gamePath)
}

// UninstallBepInEx removes BepInEx, keeping plugins and their configuration.
func (a *App) UninstallBepInEx(ctx context.Context, gamePath string) error {
	return a.bepinex.Uninstall(ctx, gamePath)
}

// Settings returns the user preferences.
func (a *App) Settings() models.AppSettings {
	return a.cfg.Settings
}

// SaveSettings persists the user preferences.
func (a *App) SaveSettings(settings models.AppSettings) error {
	return a.cfg.SaveSettings(settings)
}

// Launch starts the game with the configured launch method.
func (a *App) Launch(gamePath string) error {
	return a.launcher.Launch(gamePath, a.cfg.Settings.LaunchMethod)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/internal/version"
	"github.com/huanfeng/entwine-cli/pkg/launcher"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/registry"
)

// EnvPrefix prefixes environment overrides, e.g. ENTWINE_LOG_LEVEL.
const EnvPrefix = "ENTWINE"

// Config is the application configuration.
type Config struct {
	Settings models.AppSettings `mapstructure:"settings"`
	Registry RegistryConfig     `mapstructure:"registry"`
	Paths    PathsConfig        `mapstructure:"paths"`
	Log      LogConfig          `mapstructure:"log"`
	Lang     string             `mapstructure:"lang"`

	file string
}

// RegistryConfig holds remote endpoints.
type RegistryConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	CatalogURL      string        `mapstructure:"catalog_url"`
	GitHubAPI       string        `mapstructure:"github_api"`
	SilkVersionURL  string        `mapstructure:"silk_version_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// PathsConfig holds local file locations.
type PathsConfig struct {
	StateFile string `mapstructure:"state_file"`
	CacheDir  string `mapstructure:"cache_dir"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Dir returns the per-user application directory, ~/.entwine.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".entwine"
	}
	return filepath.Join(home, ".entwine")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	reg := registry.DefaultConfig()
	v.SetDefault("settings.launch_method", string(models.LaunchSteam))
	v.SetDefault("registry.base_url", reg.BaseURL)
	v.SetDefault("registry.catalog_url", reg.CatalogURL)
	v.SetDefault("registry.github_api", reg.GitHubAPI)
	v.SetDefault("registry.silk_version_url", "")
	v.SetDefault("registry.timeout", reg.Timeout)
	v.SetDefault("registry.download_timeout", reg.DownloadTimeout)
	v.SetDefault("paths.state_file", filepath.Join(Dir(), "state.yaml"))
	v.SetDefault("paths.cache_dir", filepath.Join(Dir(), "cache"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("lang", "")
}

// Load loads configuration from configPath (or the default location) and
// the environment. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewConfigCorruptError(configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigCorruptError(configPath, fmt.Errorf("unmarshal config: %w", err))
	}
	method, err := launcher.ParseMethod(string(cfg.Settings.LaunchMethod))
	if err != nil {
		return nil, err
	}
	cfg.Settings.LaunchMethod = method
	cfg.file = configPath
	return &cfg, nil
}

// File returns the config file path the configuration was loaded from.
func (c *Config) File() string {
	return c.file
}

// RegistryClientConfig converts the registry section for registry.NewClient.
func (c *Config) RegistryClientConfig() registry.Config {
	return registry.Config{
		BaseURL:         c.Registry.BaseURL,
		CatalogURL:      c.Registry.CatalogURL,
		GitHubAPI:       c.Registry.GitHubAPI,
		Timeout:         c.Registry.Timeout,
		DownloadTimeout: c.Registry.DownloadTimeout,
		UserAgent:       version.UserAgent(),
	}
}

// SaveSettings writes settings into the config file, leaving every other key
// of the file as it was.
func (c *Config) SaveSettings(settings models.AppSettings) error {
	method, err := launcher.ParseMethod(string(settings.LaunchMethod))
	if err != nil {
		return err
	}
	settings.LaunchMethod = method

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(c.file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.NewConfigCorruptError(c.file, err)
		}
	}
	v.Set("settings.launch_method", string(settings.LaunchMethod))

	if err := os.MkdirAll(filepath.Dir(c.file), 0755); err != nil {
		return apperrors.NewFileSystemError("failed to create config directory", err)
	}
	if err := v.WriteConfigAs(c.file); err != nil {
		return apperrors.NewFileSystemError("failed to save settings", err).WithContext("path", c.file)
	}
	c.Settings = settings
	return nil
}

// SaveTemplate writes a commented configuration template to path.
func SaveTemplate(path string) error {
	templateContent := `# Entwine configuration file

settings:
  # How "entwine launch" starts the game:
  # - "steam": through the Steam client (default)
  # - "executable": run SpiderHeckApp.exe from the game directory
  launch_method: "steam"

registry:
  # Mod catalog site; relative download and icon paths are resolved against it
  base_url: "https://silk.abstractmelon.net"
  catalog_url: "https://silk.abstractmelon.net/api/mods"
  github_api: "https://api.github.com"
  # Optional override of the published latest Silk version file
  silk_version_url: ""
  timeout: 30s
  download_timeout: 10m

paths:
  # Selected game directory is stored here (default ~/.entwine/state.yaml)
  # state_file: ""
  # Catalog snapshots and icon thumbnails (default ~/.entwine/cache)
  # cache_dir: ""

log:
  # debug, info, warn, error
  level: "info"
  # text, json, compact
  format: "text"
  file: ""

# Interface language (en, zh). Empty follows the system locale.
lang: ""
`

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(templateContent), 0644)
}

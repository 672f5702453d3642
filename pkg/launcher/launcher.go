// Package launcher starts SpiderHeck through Steam or directly from the game
// directory.
package launcher

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// SteamAppID is SpiderHeck's Steam application id.
const SteamAppID = 1329500

// ExecutableName is the game binary started by the executable method.
const ExecutableName = "SpiderHeckApp.exe"

// ParseMethod parses a launch method name. Empty selects Steam.
func ParseMethod(s string) (models.LaunchMethod, error) {
	m := models.LaunchMethod(s)
	if m == "" {
		return models.LaunchSteam, nil
	}
	if m.Valid() {
		return m, nil
	}
	return "", apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown launch method %q", s)).
		WithSuggestion("Use 'steam' or 'executable'")
}

// Runner starts a detached process.
type Runner func(dir, name string, args ...string) error

// StartProcess is the default Runner. It does not wait for the process.
func StartProcess(dir, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

// Launcher starts the game.
type Launcher struct {
	goos   string
	run    Runner
	logger utils.Logger
}

// New creates a launcher for the current platform. A nil run uses
// StartProcess.
func New(run Runner, logger utils.Logger) *Launcher {
	return NewFor(runtime.GOOS, run, logger)
}

// NewFor creates a launcher for goos.
func NewFor(goos string, run Runner, logger utils.Logger) *Launcher {
	if run == nil {
		run = StartProcess
	}
	return &Launcher{goos: goos, run: run, logger: utils.OrGlobal(logger)}
}

// SteamURL returns the steam:// URL that runs the game.
func SteamURL() string {
	return fmt.Sprintf("steam://rungameid/%d", SteamAppID)
}

// opener returns the platform command that opens a URL.
func opener(goos string) (string, []string) {
	switch goos {
	case "windows":
		return "cmd", []string{"/C", "start", ""}
	case "darwin":
		return "open", nil
	default:
		return "xdg-open", nil
	}
}

// Launch starts the game in gamePath with method.
func (l *Launcher) Launch(gamePath string, method models.LaunchMethod) error {
	switch method {
	case models.LaunchSteam, "":
		name, args := opener(l.goos)
		args = append(args, SteamURL())
		l.logger.Info("Launching SpiderHeck through Steam")
		if err := l.run("", name, args...); err != nil {
			return apperrors.NewFileSystemError("failed to launch through Steam", err).
				WithContext("command", name).
				WithSuggestion("Make sure Steam is installed and running")
		}
		return nil

	case models.LaunchExecutable:
		exe := filepath.Join(gamePath, ExecutableName)
		if !utils.IsFile(exe) {
			return apperrors.NewPathNotFoundError(exe, "game executable not found")
		}
		l.logger.Info("Launching %s", exe)
		if err := l.run(gamePath, exe); err != nil {
			return apperrors.NewFileSystemError("failed to launch game executable", err).WithContext("path", exe)
		}
		return nil
	}
	_, err := ParseMethod(string(method))
	return err
}

package mods

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// Toggler enables and disables mods by renaming them between the canonical
// and the disabled form.
type Toggler struct {
	locks  *lockmap.Map
	logger utils.Logger
}

// NewToggler creates a toggler. Share the installer's lock map.
func NewToggler(locks *lockmap.Map, logger utils.Logger) *Toggler {
	if locks == nil {
		locks = &lockmap.Map{}
	}
	return &Toggler{locks: locks, logger: utils.OrGlobal(logger)}
}

// Toggle puts fileName, given in either form, into the requested state.
// Requesting the current state is a no-op.
func (t *Toggler) Toggle(modsPath, fileName string, enable bool) error {
	if err := validateFileName(fileName); err != nil {
		return err
	}

	unlock := t.locks.Lock(LockKey(modsPath))
	defer unlock()

	enabledPath := filepath.Join(modsPath, CanonicalName(fileName))
	disabledPath := filepath.Join(modsPath, DisabledName(fileName))
	hasEnabled := utils.Exists(enabledPath)
	hasDisabled := utils.Exists(disabledPath)

	from, to := disabledPath, enabledPath
	present, occupied := hasDisabled, hasEnabled
	if !enable {
		from, to = enabledPath, disabledPath
		present, occupied = hasEnabled, hasDisabled
	}

	switch {
	case !hasEnabled && !hasDisabled:
		return apperrors.NewPathNotFoundError(filepath.Join(modsPath, fileName), fmt.Sprintf("mod %s is not installed", fileName))
	case occupied && !present:
		return nil
	case occupied:
		return apperrors.NewAlreadyInstalledError(filepath.Base(to)).
			WithSuggestion("Both the enabled and disabled copies exist; uninstall one of them")
	}

	if err := os.Rename(from, to); err != nil {
		return apperrors.NewFileSystemError(fmt.Sprintf("failed to toggle %s", fileName), err).WithContext("path", from)
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	t.logger.Info("%s %s", CanonicalName(fileName), state)
	return nil
}

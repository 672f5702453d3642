package gamepath

import "github.com/huanfeng/entwine-cli/pkg/models"

// InstallState reports whether the primary framework is installed.
type InstallState interface {
	IsInstalled(gamePath string) bool
}

// Inspector composes the stored game path and the Silk install state into an
// AppStatus.
type Inspector struct {
	store *Store
	silk  InstallState
}

// NewInspector creates an inspector.
func NewInspector(store *Store, silk InstallState) *Inspector {
	return &Inspector{store: store, silk: silk}
}

// Status returns the last stored paths, unvalidated, and a fresh Silk install check.
func (i *Inspector) Status() models.AppStatus {
	var status models.AppStatus
	gp, ok := i.store.GamePath()
	if !ok {
		return status
	}
	mp := ModsPath(gp)
	status.GamePath = &gp
	status.ModsPath = &mp
	status.SilkInstalled = i.silk.IsInstalled(gp)
	return status
}

// SetGamePath validates and stores path, then returns the refreshed status.
func (i *Inspector) SetGamePath(path string) (models.AppStatus, error) {
	if _, err := i.store.Set(path); err != nil {
		return models.AppStatus{}, err
	}
	return i.Status(), nil
}

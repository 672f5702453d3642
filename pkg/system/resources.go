// Package system checks the host for the resources installs depend on.
package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/huanfeng/entwine-cli/pkg/utils"
)

// MinFreeSpace is the free space doctor expects in the game directory.
const MinFreeSpace = 256 << 20

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path      string  `json:"path"`
	Total     uint64  `json:"total"`
	Free      uint64  `json:"free"`
	Available uint64  `json:"available"`
	Used      uint64  `json:"used"`
	UsedPct   float64 `json:"used_pct"`
}

// ResourceChecker inspects disk space and permissions.
type ResourceChecker struct {
	logger utils.Logger
}

// NewResourceChecker creates a resource checker.
func NewResourceChecker(logger utils.Logger) *ResourceChecker {
	return &ResourceChecker{logger: utils.OrGlobal(logger)}
}

// CheckDiskSpace reports the usage of the filesystem holding path.
func (rc *ResourceChecker) CheckDiskSpace(path string) (*DiskSpaceInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	total, free, available, err := diskUsage(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk statistics: %w", err)
	}

	info := &DiskSpaceInfo{
		Path:      absPath,
		Total:     total,
		Free:      free,
		Available: available,
		Used:      total - free,
	}
	if total > 0 {
		info.UsedPct = float64(info.Used) / float64(total) * 100
	}

	rc.logger.Debug("Disk space for %s: %.2f%% used (%s / %s)",
		absPath, info.UsedPct, utils.FormatBytes(int64(info.Used)), utils.FormatBytes(int64(total)))
	return info, nil
}

// Sufficient reports whether at least MinFreeSpace is available.
func (d *DiskSpaceInfo) Sufficient() bool {
	return d.Available >= MinFreeSpace
}

// CheckWritable verifies that files can be created in dir.
func (rc *ResourceChecker) CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".entwine-write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

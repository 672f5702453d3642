//go:build windows

package system

import "golang.org/x/sys/windows"

func diskUsage(path string) (total, free, available uint64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &available, &total, &free); err != nil {
		return 0, 0, 0, err
	}
	return total, free, available, nil
}

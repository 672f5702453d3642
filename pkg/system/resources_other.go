//go:build !(linux || darwin || freebsd || openbsd || dragonfly || windows)

package system

import "errors"

func diskUsage(path string) (total, free, available uint64, err error) {
	return 0, 0, 0, errors.New("disk usage is not supported on this platform")
}

//go:build linux || darwin || freebsd || openbsd || dragonfly

package system

import "golang.org/x/sys/unix"

func diskUsage(path string) (total, free, available uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, 0, err
	}
	bsize := uint64(stat.Bsize)
	return uint64(stat.Blocks) * bsize, uint64(stat.Bfree) * bsize, uint64(stat.Bavail) * bsize, nil
}

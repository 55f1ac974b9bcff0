//go:build !windows
// +build !windows

package scanner

import (
	"os"
	"syscall"
)

func fileIdentity(path string, info os.FileInfo) (frn, serial uint64, ok bool) {
	stat, castOK := info.Sys().(*syscall.Stat_t)
	if !castOK || stat == nil {
		return 0, 0, false
	}
	return uint64(stat.Ino), uint64(stat.Dev), true
}

//go:build windows
// +build windows

package scanner

import "os"

func fileIdentity(path string, info os.FileInfo) (frn, serial uint64, ok bool) {
	// File index numbers need an open handle on Windows; the pseudo
	// identity fallback in the caller covers this platform.
	return 0, 0, false
}

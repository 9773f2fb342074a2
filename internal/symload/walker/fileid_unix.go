//go:build unix

package walker

import (
	"golang.org/x/sys/unix"
)

type dirKey struct {
	dev uint64
	ino uint64
}

// keyOf identifies the real directory behind path, following symlinks.
func keyOf(path string) (dirKey, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return dirKey{}, false
	}
	return dirKey{dev: uint64(st.Dev), ino: st.Ino}, true // #nosec G115
}

func checkAccess(path string) error {
	return unix.Access(path, unix.R_OK|unix.X_OK)
}

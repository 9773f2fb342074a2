//go:build !unix

package walker

import (
	"os"
	"path/filepath"
)

type dirKey struct {
	path string
}

// keyOf falls back to the fully resolved path where inodes are unavailable.
func keyOf(path string) (dirKey, bool) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return dirKey{}, false
	}
	abs, err := filepath.Abs(real)
	if err != nil {
		return dirKey{}, false
	}
	return dirKey{path: abs}, true
}

func checkAccess(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

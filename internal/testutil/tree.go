package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
)

// WriteTree creates files below root. Keys are slash separated relative
// paths, values the file contents. Parent directories are created as needed.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(files[name]), 0o600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

// Symlink creates a symbolic link at root/link pointing at target.
// The test is skipped where symlinks are unavailable.
func Symlink(t *testing.T, root, target, link string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(link))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", link, err)
	}
	if err := os.Symlink(filepath.FromSlash(target), path); err != nil {
		if runtime.GOOS == "windows" {
			t.Skipf("symlinks not supported: %v", err)
		}
		t.Fatalf("Failed to create symlink %s -> %s: %v", link, target, err)
	}
}

// RequireUnprivileged skips tests that rely on permission bits being
// enforced, which is not the case for root.
func RequireUnprivileged(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
}

// ExecutablePath returns the running test binary, which is a real object
// file with symbol tables on ELF platforms.
func ExecutablePath(t *testing.T) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("ELF fixtures require linux")
	}
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("Failed to resolve test executable: %v", err)
	}
	return exe
}

// Package proc reads process information from the Linux /proc filesystem.
package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	coralerrors "github.com/coral-mesh/symload/internal/errors"
)

// MapRegion is one line of /proc/<pid>/maps.
type MapRegion struct {
	Start, End uint64
	Offset     uint64
	Perms      string
	Path       string
}

// IsFile reports whether the region is backed by a file rather than an
// anonymous or pseudo mapping such as [heap] or [vdso].
func (r MapRegion) IsFile() bool {
	return strings.HasPrefix(r.Path, "/") && !strings.HasSuffix(r.Path, " (deleted)")
}

// Executable reports whether the region is mapped executable.
func (r MapRegion) Executable() bool {
	return len(r.Perms) >= 3 && r.Perms[2] == 'x'
}

// GetBinaryPath returns the path to the executable for the given PID.
func GetBinaryPath(pid int) (string, error) {
	return os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
}

// RootPath returns path as seen from the mount namespace of pid.
func RootPath(pid int, path string) string {
	return filepath.Join(fmt.Sprintf("/proc/%d/root", pid), path)
}

// ReadMaps reads and parses /proc/<pid>/maps.
func ReadMaps(pid int, logger zerolog.Logger) ([]MapRegion, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	//nolint:gosec // G304: Path is from /proc filesystem for process information.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer coralerrors.DeferClose(logger, f, "failed to close maps file")

	regions, err := ParseMaps(f, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return regions, nil
}

// ParseMaps parses the maps format. Malformed lines are logged and skipped.
func ParseMaps(r io.Reader, logger zerolog.Logger) ([]MapRegion, error) {
	var regions []MapRegion
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		region, err := ParseMapEntry(line)
		if err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("Failed to parse map entry")
			continue
		}
		regions = append(regions, region)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// ParseMapEntry parses a single maps line:
//
//	55d4b2000000-55d4b2021000 r--p 00000000 08:01 131073 /usr/bin/myprog
func ParseMapEntry(line string) (MapRegion, error) {
	parts := strings.Fields(line)
	if len(parts) < 5 {
		return MapRegion{}, fmt.Errorf("not enough fields: %d in line %q", len(parts), line)
	}

	// The pathname is optional and may contain spaces.
	var path string
	if len(parts) >= 6 {
		path = strings.Join(parts[5:], " ")
	}

	start, end, ok := strings.Cut(parts[0], "-")
	if !ok {
		return MapRegion{}, fmt.Errorf("invalid address range in line %q", line)
	}
	startv, err1 := strconv.ParseUint(start, 16, 64)
	endv, err2 := strconv.ParseUint(end, 16, 64)
	offv, err3 := strconv.ParseUint(parts[2], 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return MapRegion{}, fmt.Errorf("failed to parse numeric fields in line %q", line)
	}
	return MapRegion{Start: startv, End: endv, Offset: offv, Perms: parts[1], Path: path}, nil
}

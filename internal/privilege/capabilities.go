package privilege

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	coralerrors "github.com/coral-mesh/symload/internal/errors"
)

// Linux capability bit positions (from include/uapi/linux/capability.h).
const (
	capDacOverride   = 1  // CAP_DAC_OVERRIDE
	capDacReadSearch = 2  // CAP_DAC_READ_SEARCH
	capSysPtrace     = 19 // CAP_SYS_PTRACE
)

// Capabilities are the effective capabilities that matter for inspecting
// another process and reading its files.
type Capabilities struct {
	SysPtrace     bool
	DacOverride   bool
	DacReadSearch bool
}

// CanInspect reports whether /proc/<pid>/maps and /proc/<pid>/root of
// processes owned by other users are readable.
func (c Capabilities) CanInspect() bool {
	return c.SysPtrace
}

// DetectCapabilities reads the effective capability set of the current
// process. On non-Linux platforms it returns the zero value.
func DetectCapabilities(logger zerolog.Logger) (Capabilities, error) {
	if runtime.GOOS != "linux" {
		return Capabilities{}, nil
	}

	capEff, err := readCapabilityBitmask("/proc/self/status", "CapEff", logger)
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to read capabilities: %w", err)
	}

	return Capabilities{
		SysPtrace:     hasCapability(capEff, capSysPtrace),
		DacOverride:   hasCapability(capEff, capDacOverride),
		DacReadSearch: hasCapability(capEff, capDacReadSearch),
	}, nil
}

// readCapabilityBitmask reads a capability bitmask from a proc status file.
func readCapabilityBitmask(procStatusPath, capName string, logger zerolog.Logger) (uint64, error) {
	//nolint:gosec // G304: Path is a fixed /proc file or a test fixture.
	file, err := os.Open(procStatusPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", procStatusPath, err)
	}
	defer coralerrors.DeferClose(logger, file, "failed to close status file")

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, capName+":") {
			continue
		}

		// Format: "CapEff:\t00000000a80435fb"
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return 0, fmt.Errorf("invalid %s format: %s", capName, line)
		}

		bitmask, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s bitmask: %w", capName, err)
		}
		return bitmask, nil
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", procStatusPath, err)
	}
	return 0, fmt.Errorf("%s not found in %s", capName, procStatusPath)
}

func hasCapability(bitmask uint64, capBit int) bool {
	return bitmask&(1<<uint(capBit)) != 0
}

package symtab

import (
	"debug/elf"
	"runtime"
	"strings"
)

// ArchAny disables the architecture check.
const ArchAny = "any"

var elfMachines = map[elf.Machine]string{
	elf.EM_X86_64:    "amd64",
	elf.EM_386:       "386",
	elf.EM_AARCH64:   "arm64",
	elf.EM_ARM:       "arm",
	elf.EM_RISCV:     "riscv64",
	elf.EM_PPC64:     "ppc64",
	elf.EM_S390:      "s390x",
	elf.EM_LOONGARCH: "loong64",
	elf.EM_MIPS:      "mips",
}

// NormalizeArch maps common architecture spellings (Go, ELF, Breakpad) to
// Go's GOARCH names. An empty string means the host architecture.
func NormalizeArch(arch string) string {
	switch a := strings.ToLower(strings.TrimSpace(arch)); a {
	case "":
		return normalizeGOARCH(runtime.GOARCH)
	case "x86_64", "x86-64", "amd64":
		return "amd64"
	case "x86", "i386", "i686", "386":
		return "386"
	case "aarch64", "arm64":
		return "arm64"
	case "arm", "armv7", "armv7l":
		return "arm"
	case "ppc64le", "ppc64":
		return "ppc64"
	default:
		return normalizeGOARCH(a)
	}
}

func normalizeGOARCH(a string) string {
	switch a {
	case "ppc64le":
		return "ppc64"
	case "mipsle", "mips64", "mips64le":
		return "mips"
	}
	return a
}

func archOfMachine(m elf.Machine) string {
	if a, ok := elfMachines[m]; ok {
		return a
	}
	return strings.ToLower(strings.TrimPrefix(m.String(), "EM_"))
}

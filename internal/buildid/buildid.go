// Package buildid derives stable module identities for symbol files.
package buildid

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// ErrNoBuildID is returned when an ELF file carries no GNU build-id note.
var ErrNoBuildID = errors.New("no GNU build-id note")

const noteTypeGNUBuildID = 3

// FromELF extracts the NT_GNU_BUILD_ID descriptor from an open ELF file.
// Both the conventional .note.gnu.build-id section and PT_NOTE segments are
// searched, so stripped objects without section headers still resolve.
func FromELF(f *elf.File) (string, error) {
	if section := f.Section(".note.gnu.build-id"); section != nil {
		data, err := section.Data()
		if err == nil {
			if id, ok := parseNotes(data, f.ByteOrder); ok {
				return id, nil
			}
		}
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		data, err := io.ReadAll(prog.Open())
		if err != nil {
			continue
		}
		if id, ok := parseNotes(data, f.ByteOrder); ok {
			return id, nil
		}
	}
	return "", ErrNoBuildID
}

// parseNotes walks an ELF note area.
// Format: namesz(4) + descsz(4) + type(4) + name(namesz, padded) + desc(descsz, padded).
func parseNotes(data []byte, order binary.ByteOrder) (string, bool) {
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		typ := order.Uint32(data[8:12])
		data = data[12:]

		nameEnd := align4(namesz)
		descEnd := nameEnd + align4(descsz)
		if uint64(len(data)) < descEnd {
			return "", false
		}

		name := data[:namesz]
		desc := data[nameEnd : nameEnd+uint64(descsz)]
		if typ == noteTypeGNUBuildID && bytes.Equal(bytes.TrimRight(name, "\x00"), []byte("GNU")) && len(desc) > 0 {
			return hex.EncodeToString(desc), true
		}
		data = data[descEnd:]
	}
	return "", false
}

func align4(n uint32) uint64 {
	return (uint64(n) + 3) &^ 3
}

// Fingerprint hashes the full content of r with xxh3-128.
func Fingerprint(r io.Reader) (string, error) {
	h := xxh3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	sum := h.Sum128().Bytes()
	return "xxh3:" + hex.EncodeToString(sum[:]), nil
}

// Identify returns the module identity for the file at path: the GNU
// build-id when the file is an ELF object carrying one, otherwise the xxh3
// content fingerprint.
func Identify(path string) (string, error) {
	// #nosec G304 - path is a symbol file chosen by the user.
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	if ef, err := elf.NewFile(file); err == nil {
		id, idErr := FromELF(ef)
		if idErr == nil {
			return id, nil
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	return Fingerprint(file)
}

package buildid

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/symload/internal/testutil"
)

func note(order binary.ByteOrder, name string, typ uint32, desc []byte) []byte {
	var buf bytes.Buffer
	nameBytes := append([]byte(name), 0)
	hdr := make([]byte, 12)
	order.PutUint32(hdr[0:4], uint32(len(nameBytes)))
	order.PutUint32(hdr[4:8], uint32(len(desc)))
	order.PutUint32(hdr[8:12], typ)
	buf.Write(hdr)
	buf.Write(nameBytes)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	buf.Write(desc)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func TestParseNotes(t *testing.T) {
	desc := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03}

	t.Run("gnu build-id after other notes", func(t *testing.T) {
		data := append(note(binary.LittleEndian, "Go", 4, []byte("abcdef")),
			note(binary.LittleEndian, "GNU", noteTypeGNUBuildID, desc)...)
		id, ok := parseNotes(data, binary.LittleEndian)
		require.True(t, ok)
		assert.Equal(t, "deadbeef010203", id)
	})

	t.Run("big endian", func(t *testing.T) {
		id, ok := parseNotes(note(binary.BigEndian, "GNU", noteTypeGNUBuildID, desc), binary.BigEndian)
		require.True(t, ok)
		assert.Equal(t, "deadbeef010203", id)
	})

	t.Run("wrong owner", func(t *testing.T) {
		_, ok := parseNotes(note(binary.LittleEndian, "XYZ", noteTypeGNUBuildID, desc), binary.LittleEndian)
		assert.False(t, ok)
	})

	t.Run("truncated", func(t *testing.T) {
		data := note(binary.LittleEndian, "GNU", noteTypeGNUBuildID, desc)
		_, ok := parseNotes(data[:len(data)-8], binary.LittleEndian)
		assert.False(t, ok)
	})
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(strings.NewReader("symbols"))
	require.NoError(t, err)
	b, err := Fingerprint(strings.NewReader("symbols"))
	require.NoError(t, err)
	c, err := Fingerprint(strings.NewReader("other"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "xxh3:"))
	assert.Len(t, a, len("xxh3:")+32)
}

func TestIdentify_NonELFUsesFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.sym")
	require.NoError(t, os.WriteFile(path, []byte("ffffffff81000000 T _text\n"), 0o600))

	id, err := Identify(path)
	require.NoError(t, err)

	want, err := Fingerprint(strings.NewReader("ffffffff81000000 T _text\n"))
	require.NoError(t, err)
	assert.Equal(t, want, id)
}

func TestIdentify_ELF(t *testing.T) {
	exe := testutil.ExecutablePath(t)

	id, err := Identify(exe)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := Identify(exe)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestIdentify_Missing(t *testing.T) {
	_, err := Identify(filepath.Join(t.TempDir(), "nope.so"))
	assert.Error(t, err)
}

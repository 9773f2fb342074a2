package symtab

import (
	"bytes"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/symload/internal/symload/loader"
	"github.com/coral-mesh/symload/internal/testutil"
)

const breakpadSyms = `MODULE Linux x86_64 4C4C44A1B2C3D4E5F60718293A4B5C6D0 libdemo.so
INFO CODE_ID A1444C4CC3B2E5D4F60718293A4B5C6D
FILE 0 /src/demo.c
FUNC 1000 40 0 demo_init
1000 10 12 0
FUNC m 1040 20 0 demo_run(int)
PUBLIC 2000 0 demo_exported
STACK CFI INIT 1000 40 .cfa: $rsp 8 +
`

const nmSyms = `ffffffff81000000 T _text
ffffffff81000100 t do_one_initcall
0000000000000000 A zero_addr
                 U undefined_sym
ffffffff81000200 T ext4_fill_super [ext4]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{name: content})
	return filepath.Join(dir, name)
}

func otherArch() string {
	if runtime.GOARCH == "riscv64" {
		return "amd64"
	}
	return "riscv64"
}

func TestRegister_Breakpad(t *testing.T) {
	path := writeFile(t, "libdemo.so.sym", breakpadSyms)
	table := NewTable(WithArch("amd64"))

	require.NoError(t, table.Register(path, 0x10000))

	mod, ok := table.Module(path)
	require.True(t, ok)
	assert.Equal(t, KindBreakpad, mod.Kind)
	assert.Equal(t, "amd64", mod.Arch)
	assert.Equal(t, "libdemo.so", mod.Name)
	assert.Equal(t, 3, mod.Symbols)

	sym, off, ok := table.Lookup(0x11048)
	require.True(t, ok)
	assert.Equal(t, "demo_run(int)", sym.Name)
	assert.Equal(t, uint64(0x8), off)

	sym, _, ok = table.Lookup(0x12000)
	require.True(t, ok)
	assert.Equal(t, "demo_exported", sym.Name)

	_, _, ok = table.Lookup(0x0fff)
	assert.False(t, ok)
}

func TestRegister_BreakpadWrongArch(t *testing.T) {
	path := writeFile(t, "libdemo.sym", breakpadSyms)
	table := NewTable(WithArch("arm64"))

	err := table.Register(path, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedArch)

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "unsupported architecture", regErr.Reason())
	assert.Empty(t, table.Modules())
}

func TestRegister_NMStyle(t *testing.T) {
	path := writeFile(t, "kernel.sym", nmSyms)
	table := NewTable()

	require.NoError(t, table.Register(path, 0))

	mod, ok := table.Module(path)
	require.True(t, ok)
	assert.Equal(t, KindNM, mod.Kind)
	assert.Equal(t, 3, table.Len())

	sym, off, ok := table.Lookup(0xffffffff81000150)
	require.True(t, ok)
	assert.Equal(t, "do_one_initcall", sym.Name)
	assert.Equal(t, uint64(0x50), off)

	sym, _, ok = table.Lookup(0xffffffff81000200)
	require.True(t, ok)
	assert.Equal(t, "ext4_fill_super", sym.Name)
}

func TestRegister_Malformed(t *testing.T) {
	tests := map[string]string{
		"notes.sym":  "hello world\nthis is not a symbol map\n",
		"blank.sym":  "\n\n   \n",
		"short.sym":  "MODULE Linux\nFUNC 1000 10 0 f\n",
		"broken.so":  "\x7fELF\x02\x01\x01garbage",
		"nosyms.sym": "MODULE Linux x86_64 ABC demo\nINFO nothing\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, content)
			err := NewTable(WithArch(ArchAny)).Register(path, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRegister_ReplacesPreviousSymbols(t *testing.T) {
	path := writeFile(t, "kernel.sym", nmSyms)
	table := NewTable()

	require.NoError(t, table.Register(path, 0))
	require.NoError(t, table.Register(path, 0x1000))

	assert.Len(t, table.Modules(), 1)
	assert.Equal(t, 3, table.Len())
	_, _, ok := table.Lookup(0xffffffff81000000)
	assert.False(t, ok, "old symbols must be dropped")
	sym, _, ok := table.Lookup(0xffffffff81001000)
	require.True(t, ok)
	assert.Equal(t, "_text", sym.Name)
}

func TestRegister_ELF(t *testing.T) {
	exe := testutil.ExecutablePath(t)
	table := NewTable()

	require.NoError(t, table.Register(exe, 0))

	mod, ok := table.Module(exe)
	require.True(t, ok)
	assert.Equal(t, KindELF, mod.Kind)
	assert.Equal(t, NormalizeArch(""), mod.Arch)
	assert.Greater(t, mod.Symbols, 0)
}

func TestRegister_ELFWrongArch(t *testing.T) {
	exe := testutil.ExecutablePath(t)

	err := NewTable(WithArch(otherArch())).Register(exe, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedArch)
}

type fixedBuildIDs map[string]string

func (f fixedBuildIDs) ExpectedBuildID(name string) (string, bool) {
	id, ok := f[name]
	return id, ok
}

func TestRegister_ELFBuildIDMismatch(t *testing.T) {
	exe := testutil.ExecutablePath(t)

	plain := NewTable()
	require.NoError(t, plain.Register(exe, 0))
	mod, _ := plain.Module(exe)
	if mod.BuildID == "" {
		t.Skip("test binary carries no GNU build-id")
	}

	src := fixedBuildIDs{loader.ModuleHint(exe): "0000"}
	err := NewTable(WithBuildIDSource(src)).Register(exe, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildIDMismatch)

	src[loader.ModuleHint(exe)] = mod.BuildID
	assert.NoError(t, NewTable(WithBuildIDSource(src)).Register(exe, 0))
}

func TestScriptRecorder(t *testing.T) {
	table := NewTable()
	rec := NewScriptRecorder(table)

	symPath := writeFile(t, "kernel.sym", nmSyms)
	require.NoError(t, rec.Register(symPath, 0))
	assert.Empty(t, rec.Commands(), "symbol maps are not replayable in gdb")

	bad := writeFile(t, "bad.sym", "nothing here\n")
	require.Error(t, rec.Register(bad, 0))
	assert.Empty(t, rec.Commands())

	if runtime.GOOS == "linux" {
		exe := testutil.ExecutablePath(t)
		require.NoError(t, rec.Register(exe, 0x400000))
		require.NoError(t, rec.Register(exe, 0))

		var buf bytes.Buffer
		_, err := rec.WriteTo(&buf)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "add-symbol-file "))
		assert.True(t, strings.HasSuffix(lines[0], " -o 0x400000"))
		assert.NotContains(t, lines[1], "-o")
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "/usr/lib/libc.so.6", quote("/usr/lib/libc.so.6"))
	assert.Equal(t, `"/tmp/my libs/a.so"`, quote("/tmp/my libs/a.so"))
}

func TestNormalizeArch(t *testing.T) {
	assert.Equal(t, "amd64", NormalizeArch("x86_64"))
	assert.Equal(t, "arm64", NormalizeArch("aarch64"))
	assert.Equal(t, "386", NormalizeArch("i686"))
	assert.NotEmpty(t, NormalizeArch(""))
}

func TestRegistrationError_Reason(t *testing.T) {
	err := rejected("/x.so", ErrMalformed, "bad %s", "header")
	assert.Equal(t, "malformed format: bad header", err.Error())
	assert.True(t, errors.Is(err, ErrMalformed))

	var r interface{ Reason() string }
	require.ErrorAs(t, err, &r)
	assert.Equal(t, "malformed format", r.Reason())
}

package procmaps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/symload/internal/symload/loader"
	"github.com/coral-mesh/symload/internal/symload/walker"
	"github.com/coral-mesh/symload/internal/sys/proc"
)

const maps = `55d4b2000000-55d4b2021000 r--p 00000000 08:01 131073 /usr/bin/myprog
55d4b2021000-55d4b2080000 r-xp 00021000 08:01 131073 /usr/bin/myprog
55d4b3000000-55d4b3021000 rw-p 00000000 00:00 0 [heap]
7f1c2a028000-7f1c2a1bd000 r-xp 00028000 08:01 262 /usr/lib/libc.so.6
7f1c2a000000-7f1c2a028000 r--p 00000000 08:01 262 /usr/lib/libc.so.6
7f1c29000000-7f1c29010000 r-xp 00000000 08:01 263 /usr/lib/libcrypto.so.3
7f1c2b000000-7f1c2b010000 r-xp 00000000 08:01 264 /usr/lib/libc.so.7
`

func fixedRegions(t *testing.T, text string) Option {
	t.Helper()
	regions, err := proc.ParseMaps(strings.NewReader(text), zerolog.Nop())
	require.NoError(t, err)
	return withRegions(func() ([]proc.MapRegion, error) { return regions, nil })
}

func TestResolver_Mappings(t *testing.T) {
	r, err := New(context.Background(), 42, fixedRegions(t, maps))
	require.NoError(t, err)

	mappings := r.Mappings()
	require.Len(t, mappings, 4)
	assert.Equal(t, "myprog", mappings[0].Name)
	assert.Equal(t, uint64(0x55d4b2000000), mappings[0].Base)
	assert.Equal(t, uint64(0x55d4b2080000), mappings[0].End)
	assert.Equal(t, "libcrypto.so.3", mappings[1].Name)
	assert.Equal(t, "libc.so.6", mappings[2].Name)
	assert.Equal(t, uint64(0x7f1c2a000000), mappings[2].Base)
	assert.Equal(t, uint64(0x7f1c2a1bd000), mappings[2].End)
	assert.Equal(t, "libc.so.7", mappings[3].Name)
	assert.Equal(t, 42, r.PID())
}

func TestResolver_MatchExact(t *testing.T) {
	r, err := New(context.Background(), 1, fixedRegions(t, maps))
	require.NoError(t, err)

	base, ok := r.CurrentBase("libc.so.6")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f1c2a000000), base)

	_, ok = r.CurrentBase("libc.so")
	assert.False(t, ok)
	_, ok = r.CurrentBase("")
	assert.False(t, ok)
}

func TestResolver_MatchPrefix(t *testing.T) {
	r, err := New(context.Background(), 1, fixedRegions(t, maps), WithMatch(MatchPrefix))
	require.NoError(t, err)

	// libcrypto.so.3 does not start with "libc.so", libc.so.6 is lower than libc.so.7.
	base, ok := r.CurrentBase("libc.so")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f1c2a000000), base)

	// Both libc and libcrypto start with "libc"; the lowest mapping wins.
	base, ok = r.CurrentBase("libc")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f1c29000000), base)
}

func TestResolver_Refresh(t *testing.T) {
	text := maps
	calls := 0
	read := withRegions(func() ([]proc.MapRegion, error) {
		calls++
		return proc.ParseMaps(strings.NewReader(text), zerolog.Nop())
	})

	r, err := New(context.Background(), 1, read)
	require.NoError(t, err)
	_, ok := r.CurrentBase("libz.so.1")
	assert.False(t, ok)

	text += "7f1c2d000000-7f1c2d010000 r-xp 00000000 08:01 265 /usr/lib/libz.so.1\n"
	require.NoError(t, r.Refresh())
	base, ok := r.CurrentBase("libz.so.1")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f1c2d000000), base)
	assert.Equal(t, 2, calls)
}

func TestResolver_ReadError(t *testing.T) {
	_, err := New(context.Background(), 1, withRegions(func() ([]proc.MapRegion, error) {
		return nil, errors.New("permission denied")
	}))
	assert.Error(t, err)
}

func TestResolver_AsBasePolicy(t *testing.T) {
	r, err := New(context.Background(), 1, fixedRegions(t, maps))
	require.NoError(t, err)
	policy := loader.QueryBase{Query: r}

	base, ok := policy.Base(walker.Candidate{Path: "/dbg/usr/lib/libc.so.6.debug", Category: walker.CategoryDebugInfo})
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f1c2a000000), base)

	_, ok = policy.Base(walker.Candidate{Path: "/dbg/libc.so.6.sym", Category: walker.CategorySymbolMap})
	assert.False(t, ok)
}

func TestParseMatch(t *testing.T) {
	for _, name := range []string{"", "exact", "prefix"} {
		_, err := ParseMatch(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseMatch("fuzzy")
	assert.Error(t, err)
}

func TestResolver_Self(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("/proc is linux only")
	}

	r, err := New(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, r.ProcessName())

	exe, err := os.Executable()
	require.NoError(t, err)
	exe, err = filepath.EvalSymlinks(exe)
	require.NoError(t, err)

	base, ok := r.CurrentBase(filepath.Base(exe))
	require.True(t, ok)
	assert.NotZero(t, base)

	// Whatever the build-id, asking twice gives the same cached answer.
	id1, ok1 := r.ExpectedBuildID(filepath.Base(exe))
	id2, ok2 := r.ExpectedBuildID(filepath.Base(exe))
	assert.Equal(t, id1, id2)
	assert.Equal(t, ok1, ok2)
}

func TestResolver_MissingProcess(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("/proc is linux only")
	}
	_, err := New(context.Background(), 1<<30)
	assert.Error(t, err)
}

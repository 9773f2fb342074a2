package helpers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: 2}))

	wrapped := Fail(&ExitError{Code: 2})
	assert.Equal(t, 2, ExitCode(wrapped), "Fail keeps an existing exit status")
	assert.Equal(t, 1, ExitCode(Fail(errors.New("boom"))))
	assert.NoError(t, Fail(nil))
}

func TestExitError(t *testing.T) {
	silent := &ExitError{Code: 2}
	assert.True(t, silent.Silent())
	assert.Equal(t, "exit status 2", silent.Error())

	cause := errors.New("no such path: '/nope'")
	loud := &ExitError{Code: 1, Err: cause}
	assert.False(t, loud.Silent())
	assert.ErrorIs(t, loud, cause)
	assert.Equal(t, cause.Error(), loud.Error())
}

func TestUseColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer

	assert.False(t, UseColor("auto", false, &buf), "buffers are not terminals")
	assert.True(t, UseColor("always", false, &buf))
	assert.False(t, UseColor("always", true, &buf))
	assert.False(t, UseColor("never", false, &buf))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor("always", false, &buf))
}

func TestLoadFlags(t *testing.T) {
	var f LoadFlags
	fs := pflag.NewFlagSet("load", pflag.ContinueOnError)
	f.Register(fs)

	require.NoError(t, fs.Parse([]string{"--ext", ".dbg,.elf", "--force", "--no-base", "-o", "json", "--gdb-script", "out.gdb", "-v", "/dbg"}))
	assert.Equal(t, []string{".dbg", ".elf"}, f.Extensions)
	assert.True(t, f.Force)
	assert.True(t, f.NoBase)
	assert.Equal(t, "json", f.Format)
	assert.Equal(t, "out.gdb", f.GDBScript)
	assert.True(t, f.Verbose)
	assert.Equal(t, []string{"/dbg"}, fs.Args())
}

func TestFormatNames(t *testing.T) {
	assert.Equal(t, []string{"text", "json", "yaml"}, FormatNames())
}

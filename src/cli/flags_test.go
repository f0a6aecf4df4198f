package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"
)

func TestLogLevelClampsOutOfRangeVerbosity(t *testing.T) {
	opts := &Opts{Verbosity: -5}
	assert.Equal(t, logging.ERROR, opts.LogLevel())

	opts.Verbosity = 99
	assert.Equal(t, logging.DEBUG, opts.LogLevel())
}

func TestLogLevelMapsKnownValues(t *testing.T) {
	cases := map[int]logging.Level{
		0: logging.ERROR,
		1: logging.WARNING,
		2: logging.NOTICE,
		3: logging.INFO,
		4: logging.DEBUG,
	}
	for verbosity, want := range cases {
		opts := &Opts{Verbosity: verbosity}
		assert.Equal(t, want, opts.LogLevel())
	}
}

func TestParseArgsPopulatesBuildSubcommand(t *testing.T) {
	opts, err := ParseArgs([]string{"-j", "4", "build", "//src:widget"})
	require.NoError(t, err)
	assert.Equal(t, 4, opts.NumThreads)
	assert.Equal(t, []string{"//src:widget"}, opts.Build.Args.Targets)
}

func TestExitCodeIsZeroOnlyOnSuccess(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

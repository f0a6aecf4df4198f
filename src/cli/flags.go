package cli

import (
	"github.com/jessevdk/go-flags"
	"gopkg.in/op/go-logging.v1"
)

// Opts is the top-level flag set: global options plus one required
// subcommand (build, clean, or list).
type Opts struct {
	Verbosity   int    `short:"v" long:"verbosity" description:"Log verbosity, 0 (errors only) to 4 (debug)" default:"1"`
	NumThreads  int    `short:"j" long:"num_threads" description:"Number of parallel build workers" default:"0"`
	Config      string `long:"config" description:"Path to the repo config file" default:".anvilconfig"`
	TargetsFile string `long:"targets_file" description:"Path to the JSON target declarations loaded by the reference front end" default:"ANVILFILE.json"`

	Build struct {
		ForceRebuild bool `short:"f" long:"force" description:"Rebuild the given targets even if the oracle says they're up to date"`
		IgnoreDeps   bool `long:"ignore_deps" description:"Skip dependency mtime checks; for forcing a single target's rebuild"`
		FailFast     bool `long:"fail_fast" description:"Cancel the rest of the build on the first failure"`
		Watch        bool `short:"w" long:"watch" description:"Rebuild automatically whenever a dependency changes"`
		Args         struct {
			Targets []string `positional-arg-name:"targets" description:"Targets to build"`
		} `positional-args:"yes"`
	} `command:"build" description:"Build one or more targets"`

	Clean struct {
		Args struct {
			Targets []string `positional-arg-name:"targets" description:"Targets to clean"`
		} `positional-args:"yes"`
	} `command:"clean" description:"Remove the outputs of one or more targets"`

	List struct {
		Args struct {
			Targets []string `positional-arg-name:"targets" description:"Targets to list; all targets if omitted"`
		} `positional-args:"yes"`
	} `command:"list" description:"List known targets and their dependencies"`

	// ActiveCommand is the name of the subcommand go-flags matched
	// ("build", "clean", or "list"), populated by ParseArgs. Callers must
	// dispatch on this rather than on which Args slice got populated: an
	// empty positional-args list is a valid, meaningful invocation (e.g.
	// `anvil list` with no names means "list everything"), so it can't
	// double as a command discriminator.
	ActiveCommand string `no-flag:"true"`
}

// ParseArgs parses argv (excluding argv[0]) into Opts, returning the parsed
// options together with go-flags' error, if any (a requested --help also
// comes back as an error).
func ParseArgs(argv []string) (*Opts, error) {
	opts := &Opts{}
	parser := flags.NewParser(opts, flags.Default)
	_, err := parser.ParseArgs(argv)
	if parser.Active != nil {
		opts.ActiveCommand = parser.Active.Name
	}
	return opts, err
}

// LogLevel converts the CLI's integer verbosity level to an op-logging
// level, clamping to the valid range rather than erroring on an
// out-of-range value.
func (o *Opts) LogLevel() logging.Level {
	switch {
	case o.Verbosity <= 0:
		return logging.ERROR
	case o.Verbosity == 1:
		return logging.WARNING
	case o.Verbosity == 2:
		return logging.NOTICE
	case o.Verbosity == 3:
		return logging.INFO
	default:
		return logging.DEBUG
	}
}

// ExitCode maps a build outcome to the process exit code the CLI summary
// mandates: 0 only on full success.
func ExitCode(buildErr error) int {
	if buildErr == nil {
		return 0
	}
	return 1
}

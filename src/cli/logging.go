// Package cli wires together the engine's command-line surface: flag
// parsing, coloured/plain logging, and the build/clean/list subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cli")

// StdErrIsATerminal is true if the process' stderr is an interactive TTY;
// it gates coloured log output.
var StdErrIsATerminal = term.IsTerminal(int(os.Stderr.Fd()))

// InitLogging configures the op-logging backend at the given verbosity,
// coloured when stderr is a terminal.
func InitLogging(verbosity logging.Level) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logFormatter(StdErrIsATerminal))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(verbosity, "")
	logging.SetBackend(leveled)
}

func logFormatter(coloured bool) logging.Formatter {
	format := "%{time:15:04:05.000} %{level:7s}: %{message}"
	if coloured {
		format = "%{color}" + format + "%{color:reset}"
	}
	return logging.MustStringFormatter(format)
}

// StatusLine renders a one-line progress summary, coloured when attached to
// a terminal and a plain fallback otherwise (for CI logs, pipes, etc).
func StatusLine(active, done, failed, skipped, total int) string {
	if !StdErrIsATerminal {
		return fmt.Sprintf("[%d/%d] %d active, %d failed, %d skipped", done, total, active, failed, skipped)
	}
	parts := fmt.Sprintf("[%d/%d]", done, total)
	if failed > 0 {
		parts += " " + color.RedString("%d failed", failed)
	}
	if skipped > 0 {
		parts += " " + color.YellowString("%d skipped", skipped)
	}
	parts += " " + color.CyanString("%d active", active)
	return parts
}

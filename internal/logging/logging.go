package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Output io.Writer
	JSON   bool
}

// New constructs the root logger. Colors are only used when the output is a
// terminal.
func New(opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	color := hclog.ColorOff
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "rrcfeeds",
		Level:      ParseLevel(opts.Level),
		Output:     out,
		Color:      color,
		JSONFormat: opts.JSON,
	})
}

// ParseLevel maps a config level string to an hclog level, defaulting to info.
func ParseLevel(level string) hclog.Level {
	l := hclog.LevelFromString(strings.ToLower(strings.TrimSpace(level)))
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}

// OrNull returns logger, or a discarding logger when it is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}

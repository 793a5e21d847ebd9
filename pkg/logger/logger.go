// Package logger assembles the service's zerolog loggers.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Build collects logger options. The zero Build writes JSON to stdout
// at info level.
type Build struct {
	writer io.Writer
	level  string
	pretty bool
}

func New() *Build {
	return &Build{}
}

// ToWriter redirects output, mainly for tests.
func (build *Build) ToWriter(w io.Writer) *Build {
	build.writer = w
	return build
}

// AtLevel sets the minimum level by name (trace, debug, info, warn,
// error). Unknown or empty names keep info.
func (build *Build) AtLevel(level string) *Build {
	build.level = level
	return build
}

// Pretty switches to the human-readable console format.
func (build *Build) Pretty(pretty bool) *Build {
	build.pretty = pretty
	return build
}

func (build *Build) Make() zerolog.Logger {
	writer := build.writer
	if writer == nil {
		writer = os.Stdout
	}
	if build.pretty {
		writer = zerolog.ConsoleWriter{Out: writer}
	}
	level := zerolog.InfoLevel
	if build.level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(build.level)); err == nil {
			level = parsed
		}
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

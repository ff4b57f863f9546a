// Package logging builds the process logger: human-readable console output,
// plus an optional rotated JSON log file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level string
	Debug bool
	// Console receives human-readable output. Defaults to os.Stderr.
	Console io.Writer
	// NoColor disables ANSI colors on the console writer.
	NoColor bool

	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns the logger and a closer for the log file, if any.
func New(opts Options) (zerolog.Logger, io.Closer) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    opts.NoColor,
		TimeFormat: time.DateTime,
	}}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(Level(opts.Level, opts.Debug)).
		With().Timestamp().Logger()
	return logger, closer
}

// Level parses name, falling back to info. debug forces the debug level.
func Level(name string, debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

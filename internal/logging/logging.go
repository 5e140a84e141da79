// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes where and how verbosely to log.
type Options struct {
	Level   string    // trace, debug, info, warn, error; anything else means warn
	Env     string    // "development" switches to the human-readable console writer
	Service string    // Added as the service field on JSON output
	Out     io.Writer // Defaults to os.Stdout
	File    string    // Optional rotating log file, always written as JSON
}

// Setup installs the global logger and returns a function that releases any
// log file it opened.
func Setup(opts Options) func() error {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	// Use console writer in development
	if opts.Env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closeFn = file.Close
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" && opts.Env != "development" {
		ctx = ctx.Str("service", opts.Service)
	}
	log.Logger = ctx.Logger()

	return closeFn
}

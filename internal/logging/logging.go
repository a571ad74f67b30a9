// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      slog.Level
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup builds a text logger on stderr, teed into a rotating file when
// opts.File is set, and makes it the slog default. The returned closer
// releases the log file.
func Setup(opts Options) (*slog.Logger, io.Closer) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB, // megabytes
			MaxBackups: opts.MaxBackups,
			MaxAge:     28, // days
		}
		w = io.MultiWriter(os.Stderr, lj)
		closer = lj
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level}))
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

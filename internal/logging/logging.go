package logging

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// File enables the rotating log file at Path.
	File       bool
	Path       string
	Debug      bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var debug atomic.Bool

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the standard logger at stderr and, optionally, a rotating file.
// The returned closer releases the file.
func Setup(opts Options) io.Closer {
	return setup(os.Stderr, opts)
}

func setup(console io.Writer, opts Options) io.Closer {
	debug.Store(opts.Debug)
	log.SetFlags(log.LstdFlags | log.LUTC)

	if !opts.File {
		log.SetOutput(console)
		return nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(console, file))
	return file
}

// Debugf logs only when debug output is enabled.
func Debugf(format string, args ...any) {
	if debug.Load() {
		log.Printf("DEBUG: "+format, args...)
	}
}

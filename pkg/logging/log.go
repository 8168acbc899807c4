// Package logging wraps the standard logger. Output goes to stderr unless a
// log file is configured, in which case it is written through a rotating
// lumberjack writer.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes
type Options struct {
	// File is the log file path; empty logs to stderr
	File string

	// MaxSizeMB, MaxBackups and MaxAgeDays configure rotation of File
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Compress gzips rotated files
	Compress bool

	// Verbose enables Debug output
	Verbose bool
}

var verbose atomic.Bool

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the configured writer on the standard logger. The returned
// closer releases the log file and is a no-op for stderr.
func Setup(opts Options) (io.Closer, error) {
	verbose.Store(opts.Verbose)

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.Ldate | log.Ltime)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(writer)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return writer, nil
}

// SetVerbose toggles Debug output
func SetVerbose(v bool) { verbose.Store(v) }

// Printf calls the standard log.Printf()
func Printf(format string, v ...interface{}) {
	log.Output(2, fmt.Sprintf(format, v...))
}

// Println calls the standard log.Println()
func Println(v ...interface{}) {
	log.Output(2, fmt.Sprintln(v...))
}

// Debugf logs with a [DEBUG] prefix when verbose output is enabled
func Debugf(format string, v ...interface{}) {
	if !verbose.Load() {
		return
	}
	log.Output(2, "[DEBUG] "+fmt.Sprintf(format, v...))
}

// Fatalf logs and exits with status 1
func Fatalf(format string, v ...interface{}) {
	log.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}

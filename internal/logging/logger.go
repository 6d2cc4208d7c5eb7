package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level   string // debug, info, warn, error
	Verbose bool   // forces debug
	Quiet   bool   // forces warn
	File    string // rotating log file; empty disables file output
	MaxSize int    // megabytes before rotation
	Backups int
	MaxAge  int // days
	Console io.Writer
}

// New builds the process logger, installs it as the zerolog/log global and
// returns a closer for the log file (nil when no file is used).
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if f, ok := console.(*os.File); ok && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == "" {
		console = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}

	var (
		writer io.Writer = console
		closer io.Closer
		ferr   error
	)
	if opts.File != "" {
		lj, err := newFileWriter(opts)
		if err != nil {
			// Keep going with console only.
			ferr = err
		} else {
			closer = lj
			writer = zerolog.MultiLevelWriter(console, NewFilteringWriter(lj))
		}
	}

	logger := zerolog.New(writer).
		Level(selectLevel(opts)).
		Hook(NewSensitiveDataHook()).
		With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, ferr
}

func newFileWriter(opts Options) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 10
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: opts.Backups,
		MaxAge:     opts.MaxAge,
		Compress:   true,
	}, nil
}

func selectLevel(opts Options) zerolog.Level {
	switch {
	case opts.Verbose:
		return zerolog.DebugLevel
	case opts.Quiet:
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

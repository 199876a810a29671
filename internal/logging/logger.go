// Package logging configures the zerolog logger shared by every command.
// Structured events go to stderr (or a file); human progress output is the job
// of the ui package and goes to stdout.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cmdwh/internal/common"
	"cmdwh/pkg/errors"
)

// Options configure the logger.
type Options struct {
	Level   string
	Format  string // auto, console or json
	File    string
	Service string
	Version string
	// RunID correlates every event of one invocation. Generated when empty.
	RunID string
}

// Logger wraps the configured zerolog logger and the file it may own.
type Logger struct {
	zerolog.Logger
	RunID string
	file  *os.File
}

// ParseLevel maps a config level to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing to w, or to opts.File when set.
func New(opts Options, w io.Writer) (*Logger, error) {
	l := &Logger{RunID: opts.RunID}
	if l.RunID == "" {
		l.RunID = uuid.NewString()
	}

	out := w
	if opts.File != "" {
		path, err := common.CleanPath(opts.File)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid log file path").
				WithContext("file", opts.File)
		}
		if err := common.EnsureParentDir(path); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to create log directory").
				WithContext("file", path)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, common.FilePermissionNormal)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to open log file").
				WithContext("file", path)
		}
		l.file = f
		out = f
	}

	if useConsole(opts.Format, out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Str("run_id", l.RunID)
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}
	l.Logger = ctx.Logger()
	return l, nil
}

// Init builds the logger and installs it as the global zerolog logger.
func Init(opts Options) (*Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339
	l, err := New(opts, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = l.Logger
	zerolog.DefaultContextLogger = &l.Logger
	return l, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func useConsole(format string, w io.Writer) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Environment variables to configure the log file, level and format.
const (
	envLogPath   = "IMONEY_LOG_PATH"
	envLogLevel  = "IMONEY_LOG_LEVEL"
	envLogFormat = "IMONEY_LOG_FORMAT"
)

// Options controls how Init builds the logger.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	Prefix string
}

var (
	std           *log.Logger
	logFile       *os.File
	isInitialized bool
)

// InitFromEnv initializes the logger using IMONEY_LOG_* or a default path.
func InitFromEnv(prefix string) error {
	path := os.Getenv(envLogPath)
	if path == "" {
		path = DefaultPath()
	}
	return Init(path, Options{
		Level:  os.Getenv(envLogLevel),
		Format: os.Getenv(envLogFormat),
		Prefix: prefix,
	})
}

// DefaultPath is imoney.log next to the running executable.
func DefaultPath() string {
	if exePath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exePath), "imoney.log")
	}
	return "./imoney.log"
}

// Init initializes the logger to write to the provided file path.
// It creates parent directories if needed and opens the file in append mode.
// The logger also becomes the slog default.
func Init(path string, opts Options) error {
	if isInitialized {
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	setup(f, opts)
	isInitialized = true
	return nil
}

// InitWriter points the logger at w. Used by tests and by tools that log to stderr.
func InitWriter(w io.Writer, opts Options) {
	setup(w, opts)
	isInitialized = true
}

func setup(w io.Writer, opts Options) {
	level, err := log.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = log.InfoLevel
	}
	formatter := log.TextFormatter
	if strings.EqualFold(opts.Format, "json") {
		formatter = log.JSONFormatter
	}
	std = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000000",
		Level:           level,
		Prefix:          opts.Prefix,
		Formatter:       formatter,
	})
	slog.SetDefault(slog.New(std))
}

// Close closes the underlying log file, if open.
func Close() error {
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		isInitialized = false
		return err
	}
	return nil
}

// Printf logs a formatted message at info level.
func Printf(format string, args ...any) { Infof(format, args...) }

// Debugf logs verbose diagnostics.
func Debugf(format string, args ...any) { get().Debug(fmt.Sprintf(format, args...)) }

// Infof logs informational messages.
func Infof(format string, args ...any) { get().Info(fmt.Sprintf(format, args...)) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { get().Warn(fmt.Sprintf(format, args...)) }

// Errorf logs errors.
func Errorf(format string, args ...any) { get().Error(fmt.Sprintf(format, args...)) }

func get() *log.Logger {
	if std == nil {
		// Fallback: initialize with default if not already.
		if err := InitFromEnv(""); err != nil {
			InitWriter(os.Stderr, Options{})
		}
	}
	return std
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Package logging wraps log/slog with a console handler and a rotating JSON
// file handler, and exposes package-level helpers used across the app.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/giygas/medicaments-alternatives/config"
)

// Options configures InitLogger.
type Options struct {
	Dir            string
	Env            config.Environment
	Level          string // console level override, ignored in the test environment
	Verbose        bool   // keeps info-level console output in the test environment
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer // defaults to os.Stdout
}

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.RWMutex

	fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
)

// InitLogger builds the global logger. When the log directory cannot be used
// it logs to the console only and returns the error.
func InitLogger(opts Options) error {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	service := &LoggingService{}
	var setupErr error

	rotator, err := OpenRotatingLogger(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	if err != nil {
		setupErr = err
		service.Logger = slog.New(consoleHandler)
	} else {
		service.rotator = rotator
		fileHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: GetFileLogLevel()})
		service.Logger = slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
	}

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = service
	mu.Unlock()

	if previous != nil && previous.rotator != nil {
		_ = previous.rotator.Close()
	}

	slog.SetDefault(service.Logger)
	if setupErr != nil {
		service.Logger.Error("File logging disabled", "dir", opts.Dir, "error", setupErr)
	}
	return setupErr
}

// Close flushes and closes the log file, falling back to stderr logging.
func Close() error {
	mu.Lock()
	service := DefaultLoggingService
	DefaultLoggingService = nil
	mu.Unlock()

	if service == nil || service.rotator == nil {
		return nil
	}
	return service.rotator.Close()
}

// Logger returns the global logger, or the stderr fallback before InitLogger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return fallback
	}
	return DefaultLoggingService.Logger
}

func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level for an environment. Tests stay
// quiet unless verbose; elsewhere an explicit level wins over the default.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if level != "" {
		return parseLogLevel(level)
	}
	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file handler level. Files keep everything.
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

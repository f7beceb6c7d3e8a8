// Package logging wires zerolog to rotated file output via lumberjack,
// fanning output to the console, an all-levels log file, and an
// errors-only log file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger, set by Init.
var Logger zerolog.Logger

// Config controls log level, directory and rotation.
type Config struct {
	Level      string
	LogDir     string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Default returns sane defaults for a standalone run.
func Default() Config {
	return Config{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// Init creates the log directory, sets the global level, and fans
// output to console, an all-levels rotated file, and an errors-only
// rotated file.
func Init(cfg Config) error {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	mainLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "scrapevault.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	errorLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "scrapevault_error.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	multi := zerolog.MultiLevelWriter(
		console,
		mainLog,
		&levelFilteredWriter{w: errorLog, min: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(multi).With().Timestamp().Caller().Logger()
	log.Logger = Logger

	Logger.Info().Str("level", cfg.Level).Str("log_dir", cfg.LogDir).Msg("logging initialized")
	return nil
}

// levelFilteredWriter only forwards leveled writes at or above min.
// zerolog.MultiLevelWriter calls its WriteLevel hook, so debug noise
// stays out of the error log; an unleveled Write is passed through.
type levelFilteredWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (f *levelFilteredWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *levelFilteredWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= f.min {
		return f.w.Write(p)
	}
	return len(p), nil
}

// Package logging routes the standard logger to stdout and an optional
// rotating log file.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/coreengine/internal/config"
	"github.com/natefinch/lumberjack"
)

// Setup points the standard logger at stdout and, when cfg.File is set, a
// lumberjack-rotated file. The returned closer releases the file.
func Setup(cfg config.LoggingConfig) io.Closer {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter is Setup with console output sent to out instead of stdout.
func SetupWithWriter(cfg config.LoggingConfig, out io.Writer) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.File == "" {
		log.SetOutput(out)
		return nopCloser{}
	}

	rotator := NewRotator(cfg)
	log.SetOutput(io.MultiWriter(out, rotator))
	return rotator
}

// NewRotator returns the rotating file writer for cfg.File
func NewRotator(cfg config.LoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

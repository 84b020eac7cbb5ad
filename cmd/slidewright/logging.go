package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/rhuss/slidewright/pkg/config"
	"github.com/rhuss/slidewright/pkg/debug"
)

// newLogger builds the process logger. Without an explicit format, terminals
// get text and everything else JSON. debugMode lowers the level to at
// least debug.
func newLogger(cfg config.LoggingConfig, debugMode bool, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch {
	case strings.EqualFold(cfg.Level, "trace"):
		level = debug.LevelTrace
	case cfg.Level != "":
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	if debugMode && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	format := cfg.Format
	if format == "" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

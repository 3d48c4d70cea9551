package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a string log level to slog.Level.
// Valid levels: DEBUG, INFO, WARNING, ERROR, CRITICAL (case-insensitive).
// CRITICAL maps to slog.LevelError. Unknown levels fall back to INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, nil
	}
}

// Configure parses the level string and installs the default logger on
// stderr.
func Configure(levelStr string) {
	level, _ := ParseLevel(levelStr)
	Init(level, os.Stderr)
}

// Init initializes the default slog logger with the given level.
// Terminal output gets colored levels, non-terminal output stays plain.
func Init(level slog.Level, output *os.File) {
	handler := &textHandler{
		writer:   output,
		minLevel: level,
		useColor: isTerminal(output),
	}
	slog.SetDefault(slog.New(handler))
}

// getLevelColor returns the ANSI color code for a log level
func getLevelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m" // Red for error
	case level >= slog.LevelWarn:
		return "\033[33m" // Yellow for warn
	case level >= slog.LevelInfo:
		return "\033[36m" // Cyan for info
	default:
		return "\033[90m" // Gray for debug
	}
}

// isTerminal checks if the file is a terminal
func isTerminal(file *os.File) bool {
	if fileInfo, err := file.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// formatLevel renders the level tag, normalizing WARNING to WARN
func formatLevel(level slog.Level) string {
	levelStr := strings.ToUpper(level.String())
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	return levelStr
}

// textHandler writes "LEVEL message key=value" lines
type textHandler struct {
	writer   io.Writer
	minLevel slog.Level
	useColor bool
	attrs    []slog.Attr
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *textHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder

	levelStr := formatLevel(record.Level)
	if h.useColor {
		buf.WriteString(getLevelColor(record.Level))
		buf.WriteString(levelStr)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(levelStr)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	writeAttr := func(a slog.Attr) {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &textHandler{
		writer:   h.writer,
		minLevel: h.minLevel,
		useColor: h.useColor,
		attrs:    merged,
	}
}

func (h *textHandler) WithGroup(_ string) slog.Handler {
	// Groups are not used in this codebase
	return h
}

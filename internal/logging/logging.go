// Package logging nastavuje slog (JSON) a volitelně posílá logy i na sběrnici.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel převede textovou úroveň z konfigurace na slog.Level.
// Neznámá hodnota znamená info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New vytvoří JSON logger, který píše do všech zadaných writerů.
func New(level string, writers ...io.Writer) *slog.Logger {
	w := io.MultiWriter(writers...)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

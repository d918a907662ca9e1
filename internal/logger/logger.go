package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Init opens (or appends to) the log file at logFilePath, creating its
// directory, and returns a text slog.Logger writing to it. The caller is
// responsible for closing the returned file.
func Init(logFilePath string, level slog.Level) (*os.File, *slog.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))
	return logFile, l, nil
}

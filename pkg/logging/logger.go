// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the process-wide slog logger.
//
// Default output is stderr text, following Unix CLI conventions. The server
// switches to JSON. An optional log directory adds a per-service file named
// {service}_{date}.log, always in JSON.
//
// This package does not redact: callers must keep tokens and keys out of
// log attributes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures New. The zero value logs text at info to stderr.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Unknown values
	// fall back to info.
	Level string

	// JSON switches stderr output to JSON.
	JSON bool

	// LogDir, when set, additionally writes JSON logs to
	// {LogDir}/{Service}_{date}.log. The directory is created on demand.
	LogDir string

	// Service names the log file. Default: "tau".
	Service string
}

// Logger wraps the configured slog.Logger with the file handle it owns.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New builds a logger per cfg and installs it as slog's default.
func New(cfg Config) (*Logger, error) {
	if cfg.Service == "" {
		cfg.Service = "tau"
	}

	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	var file *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: creating log directory: %w", err)
		}
		name := fmt.Sprintf("%s_%s.log", cfg.Service, time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: opening log file: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stderr, f)
	}

	var handler slog.Handler
	if cfg.JSON || file != nil {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler).With("service", cfg.Service)
	slog.SetDefault(logger)
	return &Logger{Logger: logger, file: file}, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

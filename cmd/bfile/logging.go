package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"bfile/internal/config"
)

const (
	logLevelEnvKey  = "BFILE_LOG_LEVEL"
	logFormatEnvKey = "BFILE_LOG_FORMAT"
)

// levelSetting is one candidate log level and where it came from.
type levelSetting struct {
	source string
	raw    string
}

// levelSettings orders the candidates flag, env, config. Only the first
// non-empty one is used.
func levelSettings(flagLevel, configLevel string) []levelSetting {
	return []levelSetting{
		{source: "--log-level", raw: flagLevel},
		{source: logLevelEnvKey, raw: os.Getenv(logLevelEnvKey)},
		{source: "log_level", raw: configLevel},
	}
}

// resolveLogLevel picks the effective level. A bad --log-level is an error
// since the user typed it on this invocation; a bad env or config value
// falls back to info with a warning.
func resolveLogLevel(settings []levelSetting) (slog.Level, string, error) {
	for _, s := range settings {
		if strings.TrimSpace(s.raw) == "" {
			continue
		}
		level, err := parseLogLevel(s.raw)
		if err == nil {
			return level, "", nil
		}
		if s.source == "--log-level" {
			return slog.LevelInfo, "", fmt.Errorf("invalid --log-level %q", s.raw)
		}
		return slog.LevelInfo, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", s.source, s.raw, config.DefaultLogLevel), nil
	}
	return slog.LevelInfo, "", nil
}

// configureLoggerForCLI installs the process-wide logger and returns a
// warning for the user when a configured level was ignored.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	level, warning, err := resolveLogLevel(levelSettings(flagLevel, configLevel))
	if err != nil {
		return "", err
	}
	slog.SetDefault(newLogger(level))
	return warning, nil
}

// parseLogLevel accepts slog level names, "warning", and numeric levels.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return slog.LevelInfo, nil
	case strings.EqualFold(value, "warning"):
		return slog.LevelWarn, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger writes to stderr so that command output on stdout stays
// parseable. BFILE_LOG_FORMAT=json switches to JSON lines.
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(logFormatEnvKey)), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

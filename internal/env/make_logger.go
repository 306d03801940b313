package env

import (
	"fmt"
	"io"
	"log/slog"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a config log level onto zap's levels.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("env: invalid log level %q", level)
	}
	return l, nil
}

func MakeLogger(level string) (*zap.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(l)
	logConfig.Encoding = "json"

	return logConfig.Build()
}

// MakeSlogLogger builds the JSON slog logger handed to the rosbridge client,
// at the same level as the zap logger.
func MakeSlogLogger(w io.Writer, level string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var sl slog.Level
	switch {
	case l <= zapcore.DebugLevel:
		sl = slog.LevelDebug
	case l == zapcore.InfoLevel:
		sl = slog.LevelInfo
	case l == zapcore.WarnLevel:
		sl = slog.LevelWarn
	default:
		sl = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: sl})), nil
}

package logger

import (
	"log/slog"
	"time"
)

// LogInteraction records the outcome of a slash command, button or DM.
// kind is the log type: cmd, component or dm.
func LogInteraction(kind, name, userID string, took time.Duration, err error) {
	attrs := []any{
		slog.String("type", kind),
		slog.String("name", name),
		slog.String("user_id", userID),
		slog.Duration("took", took),
	}
	if err != nil {
		slog.Error("Interaction failed", append(attrs, slog.Any("error", err))...)
		return
	}
	slog.Info("Interaction handled", attrs...)
}

// LogQuery is debug-level on success so that bun traffic stays quiet.
func LogQuery(query string, took time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", took),
		slog.String("query", query),
	}
	if err != nil {
		slog.Error("Query failed", append(attrs, slog.Any("error", err))...)
		return
	}
	slog.Debug("Query executed", attrs...)
}

func LogSystem(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sys")}, attrs...)...)
}

func LogError(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{slog.String("type", "error"), slog.Any("error", err)}, attrs...)...)
}

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

func Set(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func Get(ctx context.Context) (l *slog.Logger) {
	if v := ctx.Value(loggerKey); v != nil {
		if l = v.(*slog.Logger); l != nil {
			return
		}
	}
	l = slog.Default()
	return
}

// New returns a text logger writing to `w` at the level named by `level`
// (e.g., `DEBUG`, `info`, `WARN+2`).
func New(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level `%s`: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(
		w,
		&slog.HandlerOptions{Level: lvl},
	)), nil
}

type loggerKeyType string

const loggerKey loggerKeyType = "loggerKey"

package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default slog logger. Debug enables debug level and the text handler,
// otherwise JSON lines at info level are written to stderr.
func InitSlog(debug bool) {
	if debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

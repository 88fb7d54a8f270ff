package telemetry

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAPI writes reports to the default slog logger. Params become attributes named by their
// position, errors are flattened to their message.
type SlogAPI struct{}

func (SlogAPI) attrs(id string, params []any) []any {
	out := make([]any, 0, len(params)+1)
	if id != "" {
		out = append(out, slog.String("id", id))
	}
	for i, p := range params {
		key := fmt.Sprintf("params.%d", i)
		if err, ok := p.(error); ok {
			out = append(out, slog.String(key, err.Error()))
			continue
		}
		out = append(out, slog.Any(key, p))
	}
	return out
}

func (s SlogAPI) log(level slog.Level, msg, id string, params []any) {
	logger := slog.Default()
	if !logger.Enabled(context.Background(), level) {
		return
	}
	logger.Log(context.Background(), level, msg, s.attrs(id, params)...)
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.log(slog.LevelError, "broken component", id, params)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.log(slog.LevelWarn, LEVEL_WARNING, id, params)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	s.log(slog.LevelDebug, message, "", params)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info(LEVEL_COUNT, "id", id, "n", count)
}

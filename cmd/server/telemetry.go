package main

import (
	"context"
	"log/slog"
	"os"
	"xeroreports/internal/components/telemetry"
	libtelemetry "xeroreports/lib/telemetry"
	"xeroreports/lib/util/serviceutil"
)

func InitTelemetry(ctx context.Context, verbose bool) telemetry.API {
	libtelemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	tel, err := libtelemetry.SetupFromEnv(ctx, "xeroreports")
	switch {
	case os.IsNotExist(err):
		slog.Info("no telemetry.json5 found, traces and metrics are disabled")
	case err != nil:
		serviceutil.Fatal("setup telemetry", err)
	default:
		go func() {
			<-ctx.Done()
			err := tel.Shutdown(context.Background())
			if err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
	}
	libtelemetry.InstrumentPerfStats(ctx)

	return telemetry.SlogAPI{}
}

package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("go.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")
var browserProcGauge, _ = meter.Int64Gauge("browser_process_count")
var browserRssGauge, _ = meter.Int64Gauge("browser_rss_mb")

// BrowserUsage sums the chrome processes spawned (directly or not) by this process.
type BrowserUsage struct {
	Processes int64
	RssMB     int64
}

func isBrowserProcess(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "chrome") || strings.Contains(name, "chromium")
}

func collectBrowser(ctx context.Context, proc *process.Process, out *BrowserUsage) {
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		return
	}
	for _, child := range children {
		name, err := child.NameWithContext(ctx)
		if err == nil && isBrowserProcess(name) {
			out.Processes++
			mem, err := child.MemoryInfoWithContext(ctx)
			if err == nil {
				out.RssMB += int64(mem.RSS / 1_000_000)
			}
		}
		collectBrowser(ctx, child, out)
	}
}

// ReadBrowserUsage walks the process tree under the current pid.
func ReadBrowserUsage(ctx context.Context) (BrowserUsage, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return BrowserUsage{}, err
	}
	var usage BrowserUsage
	collectBrowser(ctx, self, &usage)
	return usage, nil
}

// InstrumentPerfStats records runtime and browser gauges every 30 seconds until ctx is done.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, time.Second, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else if err != nil {
					slog.Debug("failed to read cpu usage", "err", err)
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

				usage, err := ReadBrowserUsage(ctx)
				if err == nil {
					browserProcGauge.Record(ctx, usage.Processes)
					browserRssGauge.Record(ctx, usage.RssMB)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

package chrono

import (
	"context"
	"fmt"
	"strings"
	"xeroreports/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

const report_cron = "cron"

// CronAPI schedules recurring jobs from standard 5 field cron specs.
//
// note: fault injection point
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron runs jobs in the clock's location. A job still running when its next tick comes
// is skipped, and a panicking job is reported instead of killing the process.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron starts the scheduler, it stops once ctx is done and running jobs return.
func NewStandardCron(ctx context.Context, clock API, tel telemetry.API) StandardCron {
	logger := cronLogger{tel: tel}
	scheduler := cron.New(
		cron.WithLocation(clock.Location()),
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	scheduler.Start()

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()
	return StandardCron{cron: scheduler}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// cronLogger adapts telemetry.API to cron.Logger.
type cronLogger struct {
	tel telemetry.API
}

func pairs(keysAndValues []any) string {
	parts := make([]string, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", keysAndValues[i], keysAndValues[i+1]))
	}
	return strings.Join(parts, " ")
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(report_cron, fmt.Errorf("%s: %w", msg, err), pairs(keysAndValues))
}

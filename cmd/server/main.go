package main

import (
	"flag"
	"fmt"
	devenv "xeroreports/dev/env"
	"xeroreports/internal/api"
	"xeroreports/internal/auth"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/locator"
	"xeroreports/internal/notify"
	"xeroreports/internal/reports"
	"xeroreports/internal/service"
	"xeroreports/internal/session"
	"xeroreports/lib/configutil"
	"xeroreports/lib/util/serviceutil"
)

func resolve(path, fallback string) string {
	if path == "" {
		path = fallback
	}
	resolved, err := devenv.ResolvePath(path)
	if err != nil {
		serviceutil.Fatal(fmt.Sprintf("resolve path %s", path), err)
	}
	return resolved
}

func buildNotifier(cfg NotifyConfig, tel telemetry.API) notify.Notifier {
	var notifiers notify.Multi
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.WebhookURL, cfg.WebhookRatePerMinute, tel))
	}
	if cfg.Smtp != nil && cfg.Smtp.Server != "" {
		notifiers = append(notifiers, notify.NewEmail(*cfg.Smtp))
	}
	if len(notifiers) == 0 {
		return notify.Nop{}
	}
	return notifiers
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()
	tel := InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config](configutil.Path(ENV_CONFIG, "config.json5"))
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		serviceutil.Fatal("load timezone", err)
	}
	database, err := cfg.Database.OpenDB(db.Schema)
	if err != nil {
		serviceutil.Fatal("open database", err)
	}
	defer database.Close()
	qry := db.New(database)

	cipher, err := session.NewCipherFromEnv()
	if err != nil {
		serviceutil.Fatal("session key", err)
	}

	downloadDir := resolve(cfg.Paths.DownloadDir, "downloads")
	screenshotDir := resolve(cfg.Paths.ScreenshotDir, "screenshots")
	selectorsFile := resolve(cfg.Paths.SelectorsFile, "selectors.json5")

	registry, err := locator.LoadRegistry(selectorsFile)
	if err != nil {
		serviceutil.Fatal("load selectors", err)
	}

	runtime := browser.NewRuntime(browser.Options{
		ExecPath:       cfg.Browser.ExecPath,
		RemoteURL:      cfg.Browser.RemoteURL,
		UserAgent:      cfg.Browser.UserAgent,
		DefaultTimeout: ms(cfg.Timeouts.NavigationMs),
		DownloadDir:    downloadDir,
	}, tel)
	loc := locator.New(registry, ms(cfg.Timeouts.SelectorMs), tel)
	store := session.NewStore(qry, cipher, clock, days(cfg.Session.ExpiryDays), tel)
	machine := auth.NewMachine(runtime, store, loc, clock, auth.Options{
		NavigationTimeout: ms(cfg.Timeouts.NavigationMs),
		ScreenshotDir:     screenshotDir,
	}, tel)
	routines := reports.NewRoutines(runtime, machine, loc, clock, reports.Options{
		DownloadDir:       downloadDir,
		ScreenshotDir:     screenshotDir,
		NavigationTimeout: ms(cfg.Timeouts.NavigationMs),
		RenderTimeout:     ms(cfg.Timeouts.RenderMs),
		DownloadTimeout:   ms(cfg.Timeouts.DownloadMs),
	}, tel)
	err = routines.CheckDownloadDir()
	if err != nil {
		serviceutil.Fatal("download dir", err)
	}
	files := reports.NewFiles(downloadDir, screenshotDir, clock, tel)

	svc, err := service.NewService(
		database,
		runtime,
		machine,
		routines,
		files,
		service.WithCustomTelemetryAPI(tel),
		service.WithClock(clock),
		service.WithNotifier(buildNotifier(cfg.Notify, tel)),
		service.WithLockMode(cfg.Browser.LockMode),
	)
	if err != nil {
		serviceutil.Fatal("init service", err)
	}

	cron := chrono.NewStandardCron(ctx, clock, tel)
	err = svc.Schedule(ctx, cron, service.ScheduleConfig{
		BatchCron:   cfg.Schedule.BatchCron,
		CleanupCron: cfg.Schedule.CleanupCron,
		Retention:   days(cfg.Schedule.RetentionDays),
	})
	if err != nil {
		serviceutil.Fatal("schedule jobs", err)
	}

	go func() {
		<-ctx.Done()
		err := runtime.Stop()
		if err != nil {
			tel.ReportWarning("server.shutdown", err)
		}
	}()

	serviceutil.StartHttpServer(ctx, cfg.Port, api.NewHandler(svc, tel).Routes())
}

package main

import (
	"time"
	"xeroreports/internal/notify"
	configlibsql "xeroreports/lib/configutil/libsql"
)

// ENV_CONFIG points the server at a config file other than ./config.json5.
const ENV_CONFIG = "XERO_CONFIG"

type BrowserConfig struct {
	ExecPath  string `json:"exec_path"`
	RemoteURL string `json:"remote_url"`
	UserAgent string `json:"user_agent"`
	// "reject" or "queue"
	LockMode string `json:"lock_mode"`
}

type TimeoutsConfig struct {
	NavigationMs int `json:"navigation_ms"`
	SelectorMs   int `json:"selector_ms"`
	RenderMs     int `json:"render_ms"`
	DownloadMs   int `json:"download_ms"`
}

type PathsConfig struct {
	DownloadDir   string `json:"download_dir"`
	ScreenshotDir string `json:"screenshot_dir"`
	SelectorsFile string `json:"selectors_file"`
}

type SessionConfig struct {
	ExpiryDays int `json:"expiry_days"`
}

type ScheduleConfig struct {
	BatchCron     string `json:"batch_cron"`
	CleanupCron   string `json:"cleanup_cron"`
	RetentionDays int    `json:"retention_days"`
}

type NotifyConfig struct {
	WebhookURL           string             `json:"webhook_url"`
	WebhookRatePerMinute int                `json:"webhook_rate_per_minute"`
	Smtp                 *notify.SmtpConfig `json:"smtp"`
}

type Config struct {
	Port     int                 `json:"port"`
	Timezone string              `json:"timezone"`
	Database configlibsql.Struct `json:"database"`
	Browser  BrowserConfig       `json:"browser"`
	Timeouts TimeoutsConfig      `json:"timeouts"`
	Paths    PathsConfig         `json:"paths"`
	Session  SessionConfig       `json:"session"`
	Schedule ScheduleConfig      `json:"schedule"`
	Notify   NotifyConfig        `json:"notify"`
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

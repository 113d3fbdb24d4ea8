package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for pushrelay
type Config struct {
	// PollInterval is how often the listener asks the source for a snapshot.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// SeenCapacity bounds the dedup set; oldest ids are evicted first.
	SeenCapacity int `json:"seen_capacity" yaml:"seen_capacity"`

	// Dispatch rate limiting. Zero disables the limiter. Protects channels
	// from the notification-center backlog observed on the first snapshot.
	DispatchRate  float64 `json:"dispatch_rate" yaml:"dispatch_rate"`
	DispatchBurst int     `json:"dispatch_burst" yaml:"dispatch_burst"`

	// NotificationLevel gates forwarding at the coordinator: "all" or "none".
	NotificationLevel string `json:"notification_level" yaml:"notification_level"`

	// App filtering. A non-empty allow list wins over the deny list.
	AllowApps []string `json:"allow_apps" yaml:"allow_apps"`
	DenyApps  []string `json:"deny_apps" yaml:"deny_apps"`

	// Ntfy
	NtfyServer   string `json:"ntfy_server" yaml:"ntfy_server"`
	NtfyTopic    string `json:"ntfy_topic" yaml:"ntfy_topic"`
	NtfyUsername string `json:"ntfy_username" yaml:"ntfy_username"`
	NtfyPassword string `json:"ntfy_password" yaml:"ntfy_password"`

	// Pushbullet
	PushbulletToken string `json:"pushbullet_token" yaml:"pushbullet_token"`

	// FCM (HTTP v1)
	FCMServiceAccountFile string `json:"fcm_service_account_file" yaml:"fcm_service_account_file"`
	FCMTopic              string `json:"fcm_topic" yaml:"fcm_topic"`

	// Chat webhooks
	DiscordWebhook string `json:"discord_webhook" yaml:"discord_webhook"`
	SlackWebhook   string `json:"slack_webhook" yaml:"slack_webhook"`

	TelegramToken  string `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID string `json:"telegram_chat_id" yaml:"telegram_chat_id"`

	// Self-hosted / mobile push
	GotifyURL     string `json:"gotify_url" yaml:"gotify_url"`
	GotifyToken   string `json:"gotify_token" yaml:"gotify_token"`
	PushoverUser  string `json:"pushover_user" yaml:"pushover_user"`
	PushoverToken string `json:"pushover_token" yaml:"pushover_token"`

	GenericWebhookURL string `json:"generic_webhook_url" yaml:"generic_webhook_url"`

	// Email
	EmailHost string   `json:"email_host" yaml:"email_host"`
	EmailPort int      `json:"email_port" yaml:"email_port"`
	EmailUser string   `json:"email_user" yaml:"email_user"`
	EmailPass string   `json:"email_pass" yaml:"email_pass"`
	EmailTo   []string `json:"email_to" yaml:"email_to"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`

	// HealthCheckSchedule is a cron expression for periodic channel
	// connectivity checks. Empty disables them.
	HealthCheckSchedule string `json:"health_check_schedule" yaml:"health_check_schedule"`

	// Dispatch history (sqlite). Empty path disables the store.
	HistoryPath   string        `json:"history_path" yaml:"history_path"`
	HistoryMaxAge time.Duration `json:"history_max_age" yaml:"history_max_age"`

	// SpoolPath selects the file-backed notification source when set.
	SpoolPath string `json:"spool_path" yaml:"spool_path"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 500 * time.Millisecond,
		SeenCapacity: 4096,

		NotificationLevel: "all",

		NtfyServer: "https://ntfy.sh",
		NtfyTopic:  "pushrelay",
		FCMTopic:   "pushrelay",

		EmailPort: 587,

		// Metrics defaults (opt-in)
		MetricsEnabled: false,
		MetricsPort:    9090,

		// Influx defaults
		InfluxInterval: 1 * time.Minute,

		// Keep a week of dispatch history when the store is enabled
		HistoryMaxAge: 7 * 24 * time.Hour,
	}
}

// Validate returns a list of non-fatal configuration warnings, such as
// incomplete channel credential combinations.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.GotifyURL != "" && c.GotifyToken == "", "gotify URL provided but token is missing"},
		{c.GotifyToken != "" && c.GotifyURL == "", "gotify token provided but URL is missing"},
		{c.PushoverUser != "" && c.PushoverToken == "", "pushover user provided but token is missing"},
		{c.PushoverToken != "" && c.PushoverUser == "", "pushover token provided but user is missing"},
		{c.TelegramToken != "" && c.TelegramChatID == "", "telegram token provided but chat id is missing"},
		{c.TelegramChatID != "" && c.TelegramToken == "", "telegram chat id provided but token is missing"},
		{c.EmailHost != "" && len(c.EmailTo) == 0, "email host provided but no recipients configured (EmailTo)"},
		{c.EmailHost == "" && len(c.EmailTo) > 0, "email recipients configured but email host is empty"},
		{c.FCMServiceAccountFile != "" && c.FCMTopic == "", "FCM service account provided but topic is empty"},
		{c.SeenCapacity <= 0, "seen_capacity must be positive; the default will be used"},
		{c.PollInterval <= 0, "poll_interval must be positive; the default will be used"},
		{len(c.AllowApps) > 0 && len(c.DenyApps) > 0, "both allow_apps and deny_apps set; deny_apps is ignored while the allow list is non-empty"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	switch c.NotificationLevel {
	case "", "all", "none":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown notification_level %q (expected \"all\" or \"none\")", c.NotificationLevel))
	}
	if c.HealthCheckSchedule != "" {
		if _, err := cron.ParseStandard(c.HealthCheckSchedule); err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid health_check_schedule %q: %v", c.HealthCheckSchedule, err))
		}
	}
	return warnings
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - PUSHRELAY_POLL_INTERVAL (duration, e.g. "500ms")
// - PUSHRELAY_SEEN_CAPACITY (int, e.g. 4096)
// - PUSHRELAY_NOTIFICATION_LEVEL ("all" or "none")
// - PUSHRELAY_ALLOW_APPS / PUSHRELAY_DENY_APPS (comma-separated app names)
// - PUSHRELAY_METRICS_ENABLED (bool), PUSHRELAY_METRICS_PORT (int)
// - PUSHRELAY_INFLUX_URL / _TOKEN / _ORG / _BUCKET / _INTERVAL
// - channel credentials (PUSHRELAY_NTFY_*, PUSHRELAY_PUSHBULLET_TOKEN, ...)
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyBasicEnv(cfg); err != nil {
		return err
	}
	if err := applyFilterEnv(cfg); err != nil {
		return err
	}
	if err := applyChannelEnv(cfg); err != nil {
		return err
	}
	if err := applyEmailEnv(cfg); err != nil {
		return err
	}
	if err := applyMetricsEnv(cfg); err != nil {
		return err
	}
	if err := applyInfluxEnv(cfg); err != nil {
		return err
	}
	return nil
}

// applyBasicEnv consolidates loop and storage env parsing
func applyBasicEnv(cfg *Config) error {
	if v := os.Getenv("PUSHRELAY_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("PUSHRELAY_SEEN_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_SEEN_CAPACITY: %w", err)
		}
		cfg.SeenCapacity = n
	}
	if v := os.Getenv("PUSHRELAY_DISPATCH_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_DISPATCH_RATE: %w", err)
		}
		cfg.DispatchRate = f
	}
	if v := os.Getenv("PUSHRELAY_DISPATCH_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_DISPATCH_BURST: %w", err)
		}
		cfg.DispatchBurst = n
	}
	if v := os.Getenv("PUSHRELAY_NOTIFICATION_LEVEL"); v != "" {
		cfg.NotificationLevel = v
	}
	if v := os.Getenv("PUSHRELAY_HEALTH_CHECK_SCHEDULE"); v != "" {
		cfg.HealthCheckSchedule = v
	}
	if v := os.Getenv("PUSHRELAY_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("PUSHRELAY_HISTORY_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_HISTORY_MAX_AGE: %w", err)
		}
		cfg.HistoryMaxAge = d
	}
	if v := os.Getenv("PUSHRELAY_SPOOL_PATH"); v != "" {
		cfg.SpoolPath = v
	}
	return nil
}

// applyFilterEnv parses the comma-separated app filter lists
func applyFilterEnv(cfg *Config) error {
	if v := os.Getenv("PUSHRELAY_ALLOW_APPS"); v != "" {
		cfg.AllowApps = splitAppList(v)
	}
	if v := os.Getenv("PUSHRELAY_DENY_APPS"); v != "" {
		cfg.DenyApps = splitAppList(v)
	}
	return nil
}

// splitAppList splits a comma-separated list of app names, trimming
// whitespace and dropping empty entries.
func splitAppList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyChannelEnv consolidates channel credential env parsing
func applyChannelEnv(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"PUSHRELAY_NTFY_SERVER", &cfg.NtfyServer},
		{"PUSHRELAY_NTFY_TOPIC", &cfg.NtfyTopic},
		{"PUSHRELAY_NTFY_USERNAME", &cfg.NtfyUsername},
		{"PUSHRELAY_NTFY_PASSWORD", &cfg.NtfyPassword},
		{"PUSHRELAY_PUSHBULLET_TOKEN", &cfg.PushbulletToken},
		{"PUSHRELAY_FCM_SERVICE_ACCOUNT_FILE", &cfg.FCMServiceAccountFile},
		{"PUSHRELAY_FCM_TOPIC", &cfg.FCMTopic},
		{"PUSHRELAY_DISCORD_WEBHOOK", &cfg.DiscordWebhook},
		{"PUSHRELAY_SLACK_WEBHOOK", &cfg.SlackWebhook},
		{"PUSHRELAY_TELEGRAM_TOKEN", &cfg.TelegramToken},
		{"PUSHRELAY_TELEGRAM_CHAT_ID", &cfg.TelegramChatID},
		{"PUSHRELAY_GOTIFY_URL", &cfg.GotifyURL},
		{"PUSHRELAY_GOTIFY_TOKEN", &cfg.GotifyToken},
		{"PUSHRELAY_PUSHOVER_USER", &cfg.PushoverUser},
		{"PUSHRELAY_PUSHOVER_TOKEN", &cfg.PushoverToken},
		{"PUSHRELAY_GENERIC_WEBHOOK_URL", &cfg.GenericWebhookURL},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	return nil
}

// applyEmailEnv consolidates email-related env parsing
func applyEmailEnv(cfg *Config) error {
	if v := os.Getenv("PUSHRELAY_EMAIL_HOST"); v != "" {
		cfg.EmailHost = v
	}
	if v := os.Getenv("PUSHRELAY_EMAIL_USER"); v != "" {
		cfg.EmailUser = v
	}
	if v := os.Getenv("PUSHRELAY_EMAIL_PASS"); v != "" {
		cfg.EmailPass = v
	}
	if v := os.Getenv("PUSHRELAY_EMAIL_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_EMAIL_PORT: %w", err)
		}
		cfg.EmailPort = p
	}
	if v := os.Getenv("PUSHRELAY_EMAIL_TO"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.EmailTo = parts
	}
	return nil
}

// applyMetricsEnv consolidates metrics-related env parsing
func applyMetricsEnv(cfg *Config) error {
	if v := os.Getenv("PUSHRELAY_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_METRICS_ENABLED: %w", err)
		}
		cfg.MetricsEnabled = b
	}
	if v := os.Getenv("PUSHRELAY_METRICS_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_METRICS_PORT: %w", err)
		}
		cfg.MetricsPort = p
	}
	return nil
}

// applyInfluxEnv consolidates Influx-related env parsing
func applyInfluxEnv(cfg *Config) error {
	if v := os.Getenv("PUSHRELAY_INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := os.Getenv("PUSHRELAY_INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := os.Getenv("PUSHRELAY_INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := os.Getenv("PUSHRELAY_INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
	if v := os.Getenv("PUSHRELAY_INFLUX_INTERVAL"); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHRELAY_INFLUX_INTERVAL: %w", err)
		}
		cfg.InfluxInterval = dur
	}
	return nil
}

// Package forwarder wires the notification listener to the configured
// delivery channels and runs the supporting background jobs.
package forwarder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/filter"
	"github.com/pushrelay/pushrelay/internal/history"
	"github.com/pushrelay/pushrelay/internal/listener"
	"github.com/pushrelay/pushrelay/internal/logging"
	"github.com/pushrelay/pushrelay/internal/metrics"
	"github.com/pushrelay/pushrelay/internal/notify"
	"github.com/pushrelay/pushrelay/internal/source"
)

const pruneInterval = time.Hour

// Forwarder is the relay coordinator: it owns the listener, the channel
// registry, the optional dispatch history and the health-check schedule.
type Forwarder struct {
	cfg     *config.Config
	manager *notify.Manager
	lst     *listener.Listener
	store   *history.Store // nil when history is disabled
	cron    *cron.Cron

	quit chan struct{}
	wg   sync.WaitGroup
}

// New builds a forwarder for the given source. It fails when no delivery
// channel is configured, since a relay with nowhere to deliver is a
// misconfiguration rather than a valid idle state.
func New(cfg *config.Config, src source.Source) (*Forwarder, error) {
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Str("warning", w).Msg("config validation")
	}

	manager := notify.NewManager()
	registerChannels(cfg, manager)
	if manager.EnabledCount() == 0 {
		return nil, errors.New("no delivery channels configured")
	}
	logging.Get().Info().Strs("channels", manager.EnabledNames()).Msg("delivery channels ready")

	f := &Forwarder{
		cfg:     cfg,
		manager: manager,
		quit:    make(chan struct{}),
	}

	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
		f.store = store
	}

	f.lst = listener.New(src, f.forward, listener.Options{
		PollInterval:  cfg.PollInterval,
		SeenCapacity:  cfg.SeenCapacity,
		DispatchRate:  cfg.DispatchRate,
		DispatchBurst: cfg.DispatchBurst,
	})

	if cfg.HealthCheckSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.HealthCheckSchedule, f.runHealthCheck); err != nil {
			logging.Get().Warn().Err(err).Str("schedule", cfg.HealthCheckSchedule).Msg("health checks disabled")
		} else {
			f.cron = c
		}
	}

	return f, nil
}

// registerChannels adds every channel whose credentials are complete. A
// channel that fails Initialize is logged and left out; the rest still run.
func registerChannels(cfg *config.Config, m *notify.Manager) {
	entries := []struct {
		enabled bool
		ch      notify.Channel
	}{
		{cfg.NtfyTopic != "" && cfg.NtfyServer != "", &notify.Ntfy{ServerURL: cfg.NtfyServer, Topic: cfg.NtfyTopic, Username: cfg.NtfyUsername, Password: cfg.NtfyPassword}},
		{cfg.PushbulletToken != "", &notify.Pushbullet{APIToken: cfg.PushbulletToken}},
		{cfg.FCMServiceAccountFile != "", &notify.FCM{ServiceAccountFile: cfg.FCMServiceAccountFile, Topic: cfg.FCMTopic}},
		{cfg.DiscordWebhook != "", &notify.Discord{WebhookURL: cfg.DiscordWebhook}},
		{cfg.SlackWebhook != "", &notify.Slack{WebhookURL: cfg.SlackWebhook}},
		{cfg.TelegramToken != "" && cfg.TelegramChatID != "", &notify.Telegram{BotToken: cfg.TelegramToken, ChatID: cfg.TelegramChatID}},
		{cfg.GotifyURL != "" && cfg.GotifyToken != "", &notify.Gotify{ServerURL: cfg.GotifyURL, Token: cfg.GotifyToken}},
		{cfg.PushoverUser != "" && cfg.PushoverToken != "", &notify.Pushover{UserKey: cfg.PushoverUser, APIToken: cfg.PushoverToken}},
		{cfg.GenericWebhookURL != "", &notify.Generic{WebhookURL: cfg.GenericWebhookURL}},
		{cfg.EmailHost != "" && len(cfg.EmailTo) > 0, &notify.Email{Host: cfg.EmailHost, Port: cfg.EmailPort, User: cfg.EmailUser, Pass: cfg.EmailPass, To: cfg.EmailTo}},
	}
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		if err := m.Register(e.ch); err != nil {
			logging.Get().Warn().Err(err).Str("channel", e.ch.Name()).Msg("channel disabled")
		}
	}
}

// forward is the listener callback: it applies the level gate and the app
// filter, then fans the notification out to every enabled channel.
func (f *Forwarder) forward(ctx context.Context, n notify.Notification) {
	if f.cfg.NotificationLevel == "none" {
		metrics.IncFiltered()
		return
	}
	if !filter.ShouldForward(n.AppName, f.cfg.AllowApps, f.cfg.DenyApps) {
		metrics.IncFiltered()
		logging.Get().Debug().Str("app", n.AppName).Msg("notification filtered")
		return
	}

	metrics.IncDispatched()
	start := time.Now()
	results := f.manager.Dispatch(ctx, n.Title, n.Body, n.AppName)
	metrics.ObserveDispatchDuration(time.Since(start).Seconds())
	for name, ok := range results {
		metrics.IncChannelSend(name, ok)
	}

	if f.store != nil {
		if err := f.store.Record(ctx, n, results); err != nil {
			logging.Get().Warn().Err(err).Str("id", n.ID).Msg("failed to record dispatch history")
		}
	}
}

// Start requests source access and runs the listening loop. It blocks until
// Stop is called or ctx is cancelled.
func (f *Forwarder) Start(ctx context.Context) error {
	if err := f.lst.RequestAccess(ctx); err != nil {
		return err
	}
	if f.cron != nil {
		f.cron.Start()
	}
	if f.store != nil && f.cfg.HistoryMaxAge > 0 {
		f.wg.Add(1)
		go f.pruneLoop(ctx)
	}
	return f.lst.Start(ctx)
}

func (f *Forwarder) pruneLoop(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := f.store.Prune(ctx, f.cfg.HistoryMaxAge); err != nil {
				logging.Get().Warn().Err(err).Msg("history prune failed")
			}
		case <-f.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runHealthCheck probes every enabled channel and logs the outcome. It
// never sends a user-visible message.
func (f *Forwarder) runHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for name, ok := range f.manager.TestAll(ctx) {
		if ok {
			logging.Get().Debug().Str("channel", name).Msg("health check passed")
		} else {
			logging.Get().Warn().Str("channel", name).Msg("health check failed")
		}
	}
}

// Diagnose probes every enabled channel once and returns the per-channel
// outcome. Used by the diagnostic command.
func (f *Forwarder) Diagnose(ctx context.Context) map[string]bool {
	return f.manager.TestAll(ctx)
}

// Channels returns the names of the enabled delivery channels.
func (f *Forwarder) Channels() []string {
	return f.manager.EnabledNames()
}

// Stop shuts the forwarder down: the listener first, then the background
// jobs, then the history store.
func (f *Forwarder) Stop(ctx context.Context) {
	if f.cron != nil {
		f.cron.Stop()
	}
	close(f.quit)
	f.lst.Stop(ctx)

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Get().Warn().Msg("shutdown timeout exceeded waiting for background jobs")
	}

	if f.store != nil {
		if err := f.store.Close(); err != nil {
			logging.Get().Warn().Err(err).Msg("failed to close history store")
		}
	}
}

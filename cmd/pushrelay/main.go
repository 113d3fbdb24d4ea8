package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/forwarder"
	"github.com/pushrelay/pushrelay/internal/logging"
	"github.com/pushrelay/pushrelay/internal/metrics"
	"github.com/pushrelay/pushrelay/internal/source/filesource"
)

func main() {
	cfgFile := flag.String("config", "", "Path to config file")
	poll := flag.Duration("poll-interval", 0, "Poll interval (overrides config when set)")
	spool := flag.String("spool", "", "Path to the notification spool file (overrides config when set)")
	diagnose := flag.Bool("diagnose", false, "probe every configured channel and exit")
	send := flag.Bool("send", false, "append a test notification to the spool and exit")
	sendApp := flag.String("send-app", "pushrelay", "app name for -send")
	sendTitle := flag.String("send-title", "Test notification", "title for -send")
	sendBody := flag.String("send-body", "", "body for -send")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *cfgFile != "" {
		c, err := config.LoadConfigFromFile(*cfgFile)
		if err != nil {
			log.Fatalf("failed loading config: %v", err)
		}
		cfg = c
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}

	// CLI flags have the highest precedence
	if *poll > 0 {
		cfg.PollInterval = *poll
	}
	if *spool != "" {
		cfg.SpoolPath = *spool
	}
	if cfg.SpoolPath == "" {
		cfg.SpoolPath = filesource.DefaultSpoolPath()
	}

	cleanup := initLogging()
	defer cleanup()

	if *send {
		id, err := filesource.Append(cfg.SpoolPath, *sendApp, *sendTitle, *sendBody)
		if err != nil {
			logging.Get().Fatal().Err(err).Msg("failed to append test notification")
		}
		fmt.Printf("appended %s to %s\n", id, cfg.SpoolPath)
		return
	}

	src := filesource.New(cfg.SpoolPath)
	fwd, err := forwarder.New(cfg, src)
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("failed to build forwarder")
	}

	if *diagnose {
		runDiagnose(fwd)
		return
	}

	initMetricsAndInflux(cfg)
	startForwarderAndWait(fwd)
}

// initLogging initializes the log subsystem from env and returns a cleanup func
func initLogging() func() {
	cleanup, err := logging.Init(os.Getenv("PUSHRELAY_LOG_FILE"), os.Getenv("PUSHRELAY_LOG_LEVEL"))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return cleanup
}

// runDiagnose probes every channel once and reports per-channel results,
// exiting non-zero when any probe failed.
func runDiagnose(fwd *forwarder.Forwarder) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	for name, ok := range fwd.Diagnose(ctx) {
		status := "ok"
		if !ok {
			status = "FAILED"
			failed++
		}
		fmt.Printf("%-16s %s\n", name, status)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// initMetricsAndInflux starts the optional metrics server and Influx pusher
func initMetricsAndInflux(cfg *config.Config) {
	if cfg.MetricsEnabled {
		go func() {
			r := chi.NewRouter()
			r.Use(middleware.Recoverer)
			r.Handle("/metrics", metrics.PromHandler())
			r.Handle("/status", metrics.JSONHandler())
			r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
			if err := http.ListenAndServe(addr, r); err != nil {
				logging.Get().Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	if cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(context.Background(), cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
	}
}

// startForwarderAndWait runs the forwarder and blocks until a shutdown signal
func startForwarderAndWait(fwd *forwarder.Forwarder) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- fwd.Start(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logging.Get().Fatal().Err(err).Msg("forwarder failed to start")
		}
		return
	case s := <-sig:
		logging.Get().Info().Str("signal", s.String()).Msg("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	fwd.Stop(shutdownCtx)
}

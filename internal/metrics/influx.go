package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pushrelay/pushrelay/internal/logging"
)

// StartInfluxPusher periodically writes the counter snapshot to an InfluxDB
// v2 bucket using the line protocol. It blocks until ctx is cancelled, so
// callers run it on its own goroutine.
func StartInfluxPusher(ctx context.Context, serverURL, token, org, bucket string, interval time.Duration) {
	if serverURL == "" || bucket == "" {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	logging.Get().Info().Str("url", serverURL).Dur("interval", interval).Msg("starting influxdb pusher")

	writeURL := fmt.Sprintf("%s/api/v2/write?org=%s&bucket=%s&precision=s",
		strings.TrimRight(serverURL, "/"), url.QueryEscape(org), url.QueryEscape(bucket))
	client := &http.Client{Timeout: 5 * time.Second}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pushSnapshot(ctx, client, writeURL, token); err != nil {
				logging.Get().Warn().Err(err).Msg("influxdb push failed")
			}
		}
	}
}

// pushSnapshot writes one line-protocol point carrying the relay counters.
func pushSnapshot(ctx context.Context, client *http.Client, writeURL, token string) error {
	s := GetSnapshot()
	line := fmt.Sprintf(
		"pushrelay observed=%di,duplicates=%di,filtered=%di,dispatched=%di,send_success=%di,send_failure=%di,last_poll=%di %d",
		s.Observed, s.Duplicates, s.Filtered, s.Dispatched, s.SendSuccess, s.SendFailure, s.LastPoll, time.Now().Unix(),
	)

	req, err := http.NewRequestWithContext(ctx, "POST", writeURL, strings.NewReader(line))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("influxdb returned status %d", resp.StatusCode)
	}
	return nil
}

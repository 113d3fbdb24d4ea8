package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// --- Gotify (Self-Hosted Push) ---
type Gotify struct{ ServerURL, Token string }

func (g *Gotify) Name() string { return "Gotify" }

func (g *Gotify) Initialize() error {
	if g.ServerURL == "" || g.Token == "" {
		return errors.New("gotify server URL and token are required")
	}
	return nil
}

func (g *Gotify) Send(ctx context.Context, title, body, sourceApp string) error {
	header := title
	if sourceApp != "" {
		header = fmt.Sprintf("%s — %s", sourceApp, title)
	}
	payload := map[string]interface{}{
		"title":    header,
		"message":  bodyOrPlaceholder(body),
		"priority": 5,
	}
	return g.post(ctx, payload)
}

func (g *Gotify) TestConnection(ctx context.Context) error {
	return g.post(ctx, map[string]interface{}{"title": "Connection Test", "message": "pushrelay connection test", "priority": 1})
}

func (g *Gotify) post(ctx context.Context, payload interface{}) error {
	url := fmt.Sprintf("%s/message", strings.TrimRight(g.ServerURL, "/"))
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", g.Token)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gotify returned %d", resp.StatusCode)
	}
	return nil
}

// --- Pushover (Mobile Push) ---
var pushoverAPIURL = "https://api.pushover.net/1/messages.json"

type Pushover struct{ UserKey, APIToken string }

func (p *Pushover) Name() string { return "Pushover" }

func (p *Pushover) Initialize() error {
	if p.UserKey == "" || p.APIToken == "" {
		return errors.New("pushover user key and API token are required")
	}
	return nil
}

func (p *Pushover) Send(ctx context.Context, title, body, sourceApp string) error {
	header := title
	if sourceApp != "" {
		header = fmt.Sprintf("%s — %s", sourceApp, title)
	}
	payload := map[string]string{
		"token":   p.APIToken,
		"user":    p.UserKey,
		"title":   header,
		"message": bodyOrPlaceholder(body),
		"html":    "0",
	}
	return postJSON(ctx, pushoverAPIURL, payload)
}

func (p *Pushover) TestConnection(ctx context.Context) error {
	payload := map[string]string{
		"token":   p.APIToken,
		"user":    p.UserKey,
		"title":   "Connection Test",
		"message": "pushrelay connection test",
	}
	return postJSON(ctx, pushoverAPIURL, payload)
}

// --- Generic Webhook ---
type Generic struct{ WebhookURL string }

func (g *Generic) Name() string { return "GenericWebhook" }

func (g *Generic) Initialize() error {
	if g.WebhookURL == "" {
		return errors.New("webhook URL is required")
	}
	return nil
}

func (g *Generic) Send(ctx context.Context, title, body, sourceApp string) error {
	payload := map[string]string{
		"title":   title,
		"message": bodyOrPlaceholder(body),
		"source":  sourceApp,
		"agent":   "pushrelay",
	}
	return postJSON(ctx, g.WebhookURL, payload)
}

func (g *Generic) TestConnection(ctx context.Context) error {
	return postJSON(ctx, g.WebhookURL, map[string]string{"title": "Connection Test", "message": "pushrelay connection test", "agent": "pushrelay"})
}

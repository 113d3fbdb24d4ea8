package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// --- Slack ---
type Slack struct {
	WebhookURL string
}

func (s *Slack) Name() string { return "Slack" }

func (s *Slack) Initialize() error {
	if s.WebhookURL == "" {
		return errors.New("slack webhook URL is required")
	}
	return nil
}

func (s *Slack) Send(ctx context.Context, title, body, sourceApp string) error {
	header := title
	if sourceApp != "" {
		header = fmt.Sprintf("%s — %s", sourceApp, title)
	}
	payload := map[string]string{"text": fmt.Sprintf("*%s*\n%s", header, bodyOrPlaceholder(body))}
	return postJSON(ctx, s.WebhookURL, payload)
}

func (s *Slack) TestConnection(ctx context.Context) error {
	return postJSON(ctx, s.WebhookURL, map[string]string{"text": "pushrelay connection test"})
}

// --- Discord ---
type Discord struct {
	WebhookURL string
}

func (d *Discord) Name() string { return "Discord" }

func (d *Discord) Initialize() error {
	if d.WebhookURL == "" {
		return errors.New("discord webhook URL is required")
	}
	return nil
}

func (d *Discord) Send(ctx context.Context, title, body, sourceApp string) error {
	embed := map[string]interface{}{
		"title":       title,
		"description": bodyOrPlaceholder(body),
		"color":       3447003,
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	if sourceApp != "" {
		embed["footer"] = map[string]string{"text": sourceApp}
	}
	payload := map[string]interface{}{
		"username": "pushrelay",
		"embeds":   []map[string]interface{}{embed},
	}
	return postJSON(ctx, d.WebhookURL, payload)
}

func (d *Discord) TestConnection(ctx context.Context) error {
	return postJSON(ctx, d.WebhookURL, map[string]string{"content": "pushrelay connection test"})
}

// --- Telegram ---
var telegramAPIBase = "https://api.telegram.org"

type Telegram struct{ BotToken, ChatID string }

func (t *Telegram) Name() string { return "Telegram" }

func (t *Telegram) Initialize() error {
	if t.BotToken == "" || t.ChatID == "" {
		return errors.New("telegram bot token and chat id are required")
	}
	return nil
}

func (t *Telegram) Send(ctx context.Context, title, body, sourceApp string) error {
	header := title
	if sourceApp != "" {
		header = fmt.Sprintf("%s — %s", sourceApp, title)
	}
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.BotToken)
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       fmt.Sprintf("<b>%s</b>\n%s", header, bodyOrPlaceholder(body)),
		"parse_mode": "HTML",
	}
	return postJSON(ctx, apiURL, payload)
}

// TestConnection calls getMe, which validates the bot token without
// posting anything to the chat.
func (t *Telegram) TestConnection(ctx context.Context) error {
	apiURL := fmt.Sprintf("%s/bot%s/getMe", telegramAPIBase, t.BotToken)
	return postJSON(ctx, apiURL, map[string]string{})
}

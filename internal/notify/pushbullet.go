package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var pushbulletAPIBase = "https://api.pushbullet.com/v2"

// Pushbullet sends note pushes via the Pushbullet v2 API.
type Pushbullet struct {
	APIToken string
}

func (p *Pushbullet) Name() string { return "Pushbullet" }

func (p *Pushbullet) Initialize() error {
	if len(p.APIToken) < 10 {
		return errors.New("pushbullet API token missing or too short")
	}
	return nil
}

func (p *Pushbullet) Send(ctx context.Context, title, body, sourceApp string) error {
	_ = sourceApp // pushes carry no source field; the title stands alone
	payload := map[string]string{
		"type":  "note",
		"title": title,
		"body":  bodyOrPlaceholder(body),
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", pushbulletAPIBase+"/pushes", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Access-Token", p.APIToken)
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushbullet api %d", resp.StatusCode)
	}
	return nil
}

// TestConnection verifies the token by fetching the account it belongs to.
func (p *Pushbullet) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", pushbulletAPIBase+"/users/me", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Access-Token", p.APIToken)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushbullet api %d", resp.StatusCode)
	}
	return nil
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ntfy publishes to an ntfy topic (ntfy.sh or self-hosted).
type Ntfy struct {
	ServerURL string
	Topic     string
	Username  string
	Password  string
}

func (n *Ntfy) Name() string { return "Ntfy" }

func (n *Ntfy) Initialize() error {
	if n.ServerURL == "" || n.Topic == "" {
		return errors.New("ntfy server URL and topic are required")
	}
	return nil
}

// Send publishes the body as the message payload; ntfy carries the title and
// tags in headers. The source app is appended as a tag so subscribers can
// filter on it.
func (n *Ntfy) Send(ctx context.Context, title, body, sourceApp string) error {
	headers := map[string]string{
		"Title":    title,
		"Priority": "default",
		"Tags":     "computer",
	}
	if sourceApp != "" {
		headers["Tags"] = "computer," + strings.ReplaceAll(strings.ToLower(sourceApp), " ", "_")
	}
	return n.post(ctx, bodyOrPlaceholder(body), headers)
}

func (n *Ntfy) TestConnection(ctx context.Context) error {
	return n.post(ctx, "Connection test", map[string]string{
		"Title":    "Connection Test",
		"Priority": "low",
		"Tags":     "white_check_mark",
	})
}

func (n *Ntfy) post(ctx context.Context, body string, headers map[string]string) error {
	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(n.ServerURL, "/"), n.Topic)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if n.Username != "" && n.Password != "" {
		req.SetBasicAuth(n.Username, n.Password)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned %d", resp.StatusCode)
	}
	return nil
}

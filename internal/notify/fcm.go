package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

var fcmAPIBase = "https://fcm.googleapis.com"

// FCM sends topic messages through the Firebase Cloud Messaging HTTP v1 API,
// authenticating with a service account via OAuth2.
type FCM struct {
	ServiceAccountFile string
	Topic              string

	projectID   string
	tokenSource oauth2.TokenSource
}

func (f *FCM) Name() string { return "FCM" }

// Initialize loads the service account file and prepares the token source.
// No token is fetched here; the first Send or TestConnection does that.
func (f *FCM) Initialize() error {
	if f.Topic == "" {
		return errors.New("fcm topic is required")
	}
	data, err := os.ReadFile(f.ServiceAccountFile)
	if err != nil {
		return fmt.Errorf("read service account: %w", err)
	}
	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &sa); err != nil {
		return fmt.Errorf("parse service account: %w", err)
	}
	if sa.ProjectID == "" {
		return errors.New("service account has no project_id")
	}
	jwtCfg, err := google.JWTConfigFromJSON(data, fcmScope)
	if err != nil {
		return fmt.Errorf("service account credentials: %w", err)
	}
	f.projectID = sa.ProjectID
	f.tokenSource = jwtCfg.TokenSource(context.Background())
	return nil
}

func (f *FCM) Send(ctx context.Context, title, body, sourceApp string) error {
	if sourceApp == "" {
		sourceApp = UnknownApp
	}
	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"topic": f.Topic,
			"notification": map[string]string{
				"title": title,
				"body":  bodyOrPlaceholder(body),
			},
			"data": map[string]string{
				"source":   sourceApp,
				"category": "desktop",
			},
		},
	}
	return f.post(ctx, payload)
}

// TestConnection verifies the service account by fetching an access token.
func (f *FCM) TestConnection(ctx context.Context) error {
	if f.tokenSource == nil {
		return errors.New("fcm not initialized")
	}
	_, err := f.tokenSource.Token()
	return err
}

func (f *FCM) post(ctx context.Context, payload interface{}) error {
	if f.tokenSource == nil {
		return errors.New("fcm not initialized")
	}
	tok, err := f.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("fcm token: %w", err)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", fcmAPIBase, f.projectID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm api %d", resp.StatusCode)
	}
	return nil
}

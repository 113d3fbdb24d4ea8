package forwarder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/notify"
	"github.com/pushrelay/pushrelay/internal/source"
)

type stubSource struct{}

func (stubSource) RequestAccess(ctx context.Context) (source.AccessStatus, error) {
	return source.AccessAllowed, nil
}
func (stubSource) Snapshot(ctx context.Context) ([]source.Raw, error) { return nil, nil }
func (stubSource) ByID(ctx context.Context, id string) (source.Raw, bool, error) {
	return source.Raw{}, false, nil
}
func (stubSource) Subscribe(fn func(string)) (func(), error) { return func() {}, nil }

func webhookServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testNotification(id, app string) notify.Notification {
	return notify.Notification{ID: id, AppName: app, Title: "Title", Body: "Body", ObservedAt: time.Now()}
}

func TestNewRequiresAtLeastOneChannel(t *testing.T) {
	_, err := New(&config.Config{NotificationLevel: "all"}, stubSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no delivery channels")
}

func TestRegisterChannelsFromConfig(t *testing.T) {
	cfg := &config.Config{
		NotificationLevel: "all",
		GenericWebhookURL: "https://example.invalid/hook",
		DiscordWebhook:    "https://example.invalid/discord",
	}
	f, err := New(cfg, stubSource{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Discord", "GenericWebhook"}, f.Channels())
}

func TestForwardDeliversAllowedApp(t *testing.T) {
	var hits atomic.Int64
	srv := webhookServer(t, &hits)
	cfg := &config.Config{NotificationLevel: "all", GenericWebhookURL: srv.URL}
	f, err := New(cfg, stubSource{})
	require.NoError(t, err)

	f.forward(context.Background(), testNotification("n1", "Mail"))
	assert.Equal(t, int64(1), hits.Load())
}

func TestForwardAppliesAppFilter(t *testing.T) {
	var hits atomic.Int64
	srv := webhookServer(t, &hits)
	cfg := &config.Config{
		NotificationLevel: "all",
		GenericWebhookURL: srv.URL,
		DenyApps:          []string{"Spotify"},
	}
	f, err := New(cfg, stubSource{})
	require.NoError(t, err)

	f.forward(context.Background(), testNotification("n1", "Spotify"))
	f.forward(context.Background(), testNotification("n2", "Mail"))
	assert.Equal(t, int64(1), hits.Load())
}

func TestForwardLevelNoneSuppressesEverything(t *testing.T) {
	var hits atomic.Int64
	srv := webhookServer(t, &hits)
	cfg := &config.Config{NotificationLevel: "none", GenericWebhookURL: srv.URL}
	f, err := New(cfg, stubSource{})
	require.NoError(t, err)

	f.forward(context.Background(), testNotification("n1", "Mail"))
	assert.Zero(t, hits.Load())
}

func TestForwardRecordsHistory(t *testing.T) {
	var hits atomic.Int64
	srv := webhookServer(t, &hits)
	cfg := &config.Config{
		NotificationLevel: "all",
		GenericWebhookURL: srv.URL,
		HistoryPath:       filepath.Join(t.TempDir(), "history.db"),
	}
	f, err := New(cfg, stubSource{})
	require.NoError(t, err)
	defer f.store.Close()

	f.forward(context.Background(), testNotification("n1", "Mail"))

	entries, err := f.store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "n1", entries[0].NotificationID)
	assert.Equal(t, 1, entries[0].ChannelsOK)
}

func TestStartStop(t *testing.T) {
	var hits atomic.Int64
	srv := webhookServer(t, &hits)
	cfg := &config.Config{
		NotificationLevel: "all",
		GenericWebhookURL: srv.URL,
		PollInterval:      20 * time.Millisecond,
	}
	f, err := New(cfg, stubSource{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Start(context.Background())
	}()

	time.Sleep(60 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f.Stop(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

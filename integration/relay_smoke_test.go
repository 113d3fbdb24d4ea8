package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/forwarder"
	"github.com/pushrelay/pushrelay/internal/source/filesource"
)

type capture struct {
	mu       sync.Mutex
	payloads []map[string]string
}

func (c *capture) handler(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var p map[string]string
	_ = json.Unmarshal(b, &p)
	c.mu.Lock()
	c.payloads = append(c.payloads, p)
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// End-to-end smoke test: notifications appended to the spool flow through
// the listener, the app filter and the dispatcher to a webhook receiver,
// and re-polling the same spool never forwards an entry twice.
func TestRelayEndToEnd(t *testing.T) {
	rec := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	spool := filepath.Join(t.TempDir(), "spool.jsonl")
	cfg := &config.Config{
		NotificationLevel: "all",
		GenericWebhookURL: srv.URL,
		PollInterval:      20 * time.Millisecond,
		SeenCapacity:      64,
		DenyApps:          []string{"Spotify"},
	}

	fwd, err := forwarder.New(cfg, filesource.New(spool))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fwd.Start(context.Background())
	}()

	_, err = filesource.Append(spool, "Mail", "New message", "Hello there")
	require.NoError(t, err)
	waitFor(t, func() bool { return rec.count() == 1 })

	// A denied app never reaches the webhook.
	_, err = filesource.Append(spool, "Spotify", "Now playing", "Track")
	require.NoError(t, err)

	// The spool still contains the first entry; several more poll cycles
	// must not forward it again.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	_, err = filesource.Append(spool, "Chat", "Ping", "")
	require.NoError(t, err)
	waitFor(t, func() bool { return rec.count() == 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	fwd.Stop(ctx)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "New message", rec.payloads[0]["title"])
	assert.Equal(t, "Ping", rec.payloads[1]["title"])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within 3s")
}

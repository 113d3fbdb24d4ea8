package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pushrelay/pushrelay/internal/logging"
)

// Channel is the contract every delivery channel implements.
//
// Initialize validates the channel's own configuration and must be free of
// network side effects. Send performs one best-effort delivery; it must
// report failures through the returned error rather than panicking past its
// boundary. TestConnection is an out-of-band connectivity check used only by
// diagnostic tooling, never during normal dispatch.
type Channel interface {
	Name() string
	Initialize() error
	Send(ctx context.Context, title, body, sourceApp string) error
	TestConnection(ctx context.Context) error
}

type registryEntry struct {
	name    string
	enabled bool
	ch      Channel
}

// Manager owns the channel registry and fans notifications out to every
// enabled channel with per-channel failure isolation. The registry is built
// at startup via Register and is immutable while dispatching.
type Manager struct {
	entries []registryEntry
}

// NewManager returns an empty dispatch manager.
func NewManager() *Manager {
	return &Manager{entries: make([]registryEntry, 0)}
}

// Register initializes the channel and, on success, adds it to the registry.
// An initialization failure excludes the channel and is returned to the
// caller; it is non-fatal to sibling registrations.
func (m *Manager) Register(ch Channel) error {
	if ch == nil {
		return errors.New("nil channel")
	}
	if err := ch.Initialize(); err != nil {
		logging.Get().Warn().Err(err).Str("channel", ch.Name()).Msg("channel failed to initialize, excluded from registry")
		return fmt.Errorf("initialize %s: %w", ch.Name(), err)
	}
	m.entries = append(m.entries, registryEntry{name: ch.Name(), enabled: true, ch: ch})
	logging.Get().Info().Str("channel", ch.Name()).Msg("channel registered")
	return nil
}

// EnabledCount returns the number of channels that will receive dispatches.
func (m *Manager) EnabledCount() int {
	n := 0
	for _, e := range m.entries {
		if e.enabled {
			n++
		}
	}
	return n
}

// EnabledNames returns the names of all enabled channels in registration order.
func (m *Manager) EnabledNames() []string {
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if e.enabled {
			names = append(names, e.name)
		}
	}
	return names
}

// Dispatch sends one notification to every enabled channel and returns a
// per-channel success map keyed by channel name. Sends run concurrently;
// one channel failing (by error or panic) never prevents the others from
// being attempted. An empty registry yields an empty map and a warning.
func (m *Manager) Dispatch(ctx context.Context, title, body, sourceApp string) map[string]bool {
	results := make(map[string]bool, len(m.entries))
	if m.EnabledCount() == 0 {
		logging.Get().Warn().Msg("no enabled channels to dispatch to")
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, e := range m.entries {
		if !e.enabled {
			continue
		}
		wg.Add(1)
		go func(e registryEntry) {
			defer wg.Done()
			ok := m.sendOne(ctx, e, title, body, sourceApp)
			mu.Lock()
			results[e.name] = ok
			mu.Unlock()
		}(e)
	}
	wg.Wait()

	sent := 0
	for _, ok := range results {
		if ok {
			sent++
		}
	}
	logging.Get().Info().Int("sent", sent).Int("total", len(results)).Str("app", sourceApp).Msg("dispatch complete")
	return results
}

// sendOne performs a single channel send inside a fault boundary. A panic
// escaping the channel is recorded as a failure but logged distinctly from
// an ordinary send error.
func (m *Manager) sendOne(ctx context.Context, e registryEntry, title, body, sourceApp string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get().Error().Interface("panic", r).Str("channel", e.name).Msg("channel panicked during send")
			ok = false
		}
	}()
	if err := e.ch.Send(ctx, title, body, sourceApp); err != nil {
		logging.Get().Warn().Err(err).Str("channel", e.name).Msg("channel send failed")
		return false
	}
	logging.Get().Debug().Str("channel", e.name).Msg("channel send succeeded")
	return true
}

// TestAll runs every enabled channel's connectivity check. Diagnostics only.
func (m *Manager) TestAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		if !e.enabled {
			continue
		}
		err := e.ch.TestConnection(ctx)
		if err != nil {
			logging.Get().Warn().Err(err).Str("channel", e.name).Msg("connectivity check failed")
		}
		results[e.name] = err == nil
	}
	return results
}

// postJSON is a shared helper used by channels
func postJSON(ctx context.Context, url string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	return nil
}

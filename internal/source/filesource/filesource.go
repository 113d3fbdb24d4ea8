// Package filesource implements the notification source contract on top of
// an append-only JSONL spool file. Polling reads the whole spool as the
// snapshot; an fsnotify watch on the spool provides the push-event
// mechanism. It exists for development and testing — the OS-native source
// is an external collaborator behind the same interface.
package filesource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/pushrelay/pushrelay/internal/logging"
	"github.com/pushrelay/pushrelay/internal/source"
)

const spoolFileName = "spool.jsonl"

// entry is one spool line.
type entry struct {
	ID    string    `json:"id,omitempty"`
	App   string    `json:"app,omitempty"`
	Title string    `json:"title,omitempty"`
	Body  string    `json:"body,omitempty"`
	At    time.Time `json:"at,omitempty"`
}

// Source reads notifications from a spool file.
type Source struct {
	path string

	mu       sync.Mutex
	notified int // spool lines already reported through Subscribe
}

// New returns a spool-backed source. An empty path selects DefaultSpoolPath.
func New(path string) *Source {
	if path == "" {
		path = DefaultSpoolPath()
	}
	return &Source{path: path}
}

// Path returns the spool file location this source reads from.
func (s *Source) Path() string { return s.path }

// DefaultSpoolPath resolves the spool location. PUSHRELAY_SPOOL_DIR wins;
// otherwise prefer /var/lib/pushrelay, falling back to the working
// directory and finally the temp dir.
func DefaultSpoolPath() string {
	if dir := os.Getenv("PUSHRELAY_SPOOL_DIR"); dir != "" {
		return filepath.Join(dir, spoolFileName)
	}
	defaultDir := "/var/lib/pushrelay"
	if err := os.MkdirAll(defaultDir, 0o755); err == nil {
		return filepath.Join(defaultDir, spoolFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, spoolFileName)
	}
	return filepath.Join(os.TempDir(), spoolFileName)
}

// RequestAccess checks that the spool file is readable, creating it when
// missing. A permission error maps to AccessDenied; any other failure is
// AccessUnspecified.
func (s *Source) RequestAccess(ctx context.Context) (source.AccessStatus, error) {
	_ = ctx
	f, err := os.OpenFile(s.path, os.O_RDONLY, 0)
	if err == nil {
		_ = f.Close()
		return source.AccessAllowed, nil
	}
	if os.IsPermission(err) {
		return source.AccessDenied, err
	}
	if !os.IsNotExist(err) {
		return source.AccessUnspecified, err
	}
	// Spool missing: create it empty so the watcher has something to watch.
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return source.AccessUnspecified, fmt.Errorf("create spool dir: %w", err)
	}
	f, err = os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		if os.IsPermission(err) {
			return source.AccessDenied, err
		}
		return source.AccessUnspecified, err
	}
	_ = f.Close()
	return source.AccessAllowed, nil
}

// Snapshot reads the full spool and returns every entry as a Raw.
func (s *Source) Snapshot(ctx context.Context) ([]source.Raw, error) {
	_ = ctx
	return s.readAll()
}

// ByID scans the spool for the entry with the given id.
func (s *Source) ByID(ctx context.Context, id string) (source.Raw, bool, error) {
	_ = ctx
	raws, err := s.readAll()
	if err != nil {
		return source.Raw{}, false, err
	}
	for _, r := range raws {
		if r.ID == id {
			return r, true, nil
		}
	}
	return source.Raw{}, false, nil
}

// Subscribe starts an fsnotify watch on the spool's directory and calls fn
// with the id of every entry appended after the subscription was made.
func (s *Source) Subscribe(fn func(id string)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify watcher: %w", err)
	}
	// Watch the directory: editors and atomic writers replace the file,
	// which would silently drop a watch on the file itself.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch spool dir: %w", err)
	}

	// Only entries appended after this point produce events.
	raws, err := s.readAll()
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	s.mu.Lock()
	s.notified = len(raws)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.emitNew(fn)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Get().Debug().Err(err).Msg("spool watch error")
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = w.Close()
		})
	}
	return cancel, nil
}

// emitNew reports ids of spool lines not yet seen by the subscriber.
func (s *Source) emitNew(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raws, err := s.readAll()
	if err != nil {
		logging.Get().Debug().Err(err).Msg("failed reading spool on change event")
		return
	}
	for i := s.notified; i < len(raws); i++ {
		fn(raws[i].ID)
	}
	if len(raws) > s.notified {
		s.notified = len(raws)
	}
}

// readAll parses the spool. A missing file is an empty snapshot. Malformed
// lines are skipped; an id-less line gets a deterministic id derived from
// its position, which is stable because the spool is append-only.
func (s *Source) readAll() ([]source.Raw, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	var out []source.Raw
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			logging.Get().Debug().Err(err).Int("line", lineNo).Msg("skipping malformed spool line")
			continue
		}
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("line-%d", lineNo)
		}
		out = append(out, source.Raw{
			ID:        id,
			AppName:   e.App,
			Texts:     []string{e.Title, e.Body},
			CreatedAt: e.At,
		})
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan spool: %w", err)
	}
	return out, nil
}

// Append writes one entry to the spool, assigning a fresh id when none is
// given, and returns the id. Used by tooling and tests to feed the source.
func Append(path, app, title, body string) (string, error) {
	id := uuid.NewString()
	e := entry{ID: id, App: app, Title: title, Body: body, At: time.Now().UTC()}
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return "", fmt.Errorf("append spool: %w", err)
	}
	return id, nil
}

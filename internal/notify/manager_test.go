package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeChannel struct {
	name     string
	initErr  error
	sendErr  error
	panics   bool
	sends    int32
	testErr  error
	testRuns int32
}

func (f *fakeChannel) Name() string      { return f.name }
func (f *fakeChannel) Initialize() error { return f.initErr }

func (f *fakeChannel) Send(ctx context.Context, title, body, sourceApp string) error {
	atomic.AddInt32(&f.sends, 1)
	if f.panics {
		panic("channel blew up")
	}
	return f.sendErr
}

func (f *fakeChannel) TestConnection(ctx context.Context) error {
	atomic.AddInt32(&f.testRuns, 1)
	return f.testErr
}

func TestRegisterGating(t *testing.T) {
	m := NewManager()
	good := &fakeChannel{name: "good"}
	bad := &fakeChannel{name: "bad", initErr: errors.New("bad creds")}

	if err := m.Register(good); err != nil {
		t.Fatalf("register good: %v", err)
	}
	if err := m.Register(bad); err == nil {
		t.Fatal("expected error for failing initialize")
	}
	if m.EnabledCount() != 1 {
		t.Fatalf("expected 1 enabled channel, got %d", m.EnabledCount())
	}

	results := m.Dispatch(context.Background(), "T", "M", "App")
	if _, ok := results["bad"]; ok {
		t.Fatal("uninitialized channel must never appear in dispatch results")
	}
	if ok := results["good"]; !ok {
		t.Fatalf("expected good channel to succeed: %v", results)
	}
}

func TestRegisterNil(t *testing.T) {
	m := NewManager()
	if err := m.Register(nil); err == nil {
		t.Fatal("expected error for nil channel")
	}
}

func TestDispatchFanOutCompleteness(t *testing.T) {
	m := NewManager()
	chans := []*fakeChannel{
		{name: "a"},
		{name: "b", sendErr: errors.New("network down")},
		{name: "c"},
	}
	for _, c := range chans {
		if err := m.Register(c); err != nil {
			t.Fatalf("register %s: %v", c.name, err)
		}
	}

	results := m.Dispatch(context.Background(), "T", "M", "App")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %v", len(results), results)
	}
	failures := 0
	for name, ok := range results {
		if !ok {
			failures++
			if name != "b" {
				t.Fatalf("unexpected failing channel %s", name)
			}
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one failure, got %d", failures)
	}
	for _, c := range chans {
		if n := atomic.LoadInt32(&c.sends); n != 1 {
			t.Fatalf("expected channel %s to be invoked exactly once, got %d", c.name, n)
		}
	}
}

func TestDispatchPanicIsolation(t *testing.T) {
	m := NewManager()
	boom := &fakeChannel{name: "boom", panics: true}
	calm := &fakeChannel{name: "calm"}
	if err := m.Register(boom); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(calm); err != nil {
		t.Fatal(err)
	}

	results := m.Dispatch(context.Background(), "T", "M", "")
	if results["boom"] {
		t.Fatal("panicking channel must be recorded as failed")
	}
	if !results["calm"] {
		t.Fatal("sibling channel must still be attempted and succeed")
	}
}

func TestDispatchEmptyRegistry(t *testing.T) {
	m := NewManager()
	results := m.Dispatch(context.Background(), "T", "M", "App")
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %v", results)
	}
}

func TestEnabledNames(t *testing.T) {
	m := NewManager()
	_ = m.Register(&fakeChannel{name: "first"})
	_ = m.Register(&fakeChannel{name: "second"})
	names := m.EnabledNames()
	if len(names) != 2 || names[0] != "first" || names[1] != "second" {
		t.Fatalf("expected registration order, got %v", names)
	}
}

func TestTestAll(t *testing.T) {
	m := NewManager()
	ok := &fakeChannel{name: "ok"}
	down := &fakeChannel{name: "down", testErr: errors.New("unreachable")}
	_ = m.Register(ok)
	_ = m.Register(down)

	results := m.TestAll(context.Background())
	if !results["ok"] || results["down"] {
		t.Fatalf("unexpected test results: %v", results)
	}
	if atomic.LoadInt32(&ok.sends) != 0 {
		t.Fatal("TestAll must not invoke Send")
	}
}

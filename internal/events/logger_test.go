package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memorySink captures inserts in memory; fail makes every write error.
type memorySink struct {
	mu     sync.Mutex
	events map[string]Input
	fail   bool
	panics bool
}

func newMemorySink() *memorySink {
	return &memorySink{events: make(map[string]Input)}
}

func (s *memorySink) Insert(ctx context.Context, id string, in Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panics {
		panic("sink exploded")
	}
	if s.fail {
		return errors.New("disk on fire")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.events[id] = in
	return nil
}

func (s *memorySink) get(id string) (Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.events[id]
	return in, ok
}

func TestLogger_LogReturnsID(t *testing.T) {
	sink := newMemorySink()
	logger := NewLogger(sink)

	id := logger.Log(BotDetected("client-a", "headless UA", RequestMeta{Path: "/contact"}))
	if id == "" {
		t.Fatal("successful log should return an event ID")
	}

	in, ok := sink.get(id)
	if !ok {
		t.Fatal("event was not persisted")
	}
	if in.Type != TypeBotDetected || in.Severity != SeverityMedium {
		t.Errorf("persisted %q/%q, want BOT_DETECTED/MEDIUM", in.Type, in.Severity)
	}
	if in.Path != "/contact" {
		t.Errorf("path = %q, want /contact", in.Path)
	}
}

func TestLogger_SwallowsSinkFailure(t *testing.T) {
	sink := newMemorySink()
	sink.fail = true
	logger := NewLogger(sink)

	if id := logger.Log(CSRFFailure("client-a", RequestMeta{})); id != "" {
		t.Errorf("failed log should return empty ID, got %q", id)
	}
}

func TestLogger_AsyncSwallowsPanic(t *testing.T) {
	sink := newMemorySink()
	sink.panics = true
	logger := NewLogger(sink)

	id := logger.LogAsync(SuspiciousActivity("client-a", "odd traffic", SeverityHigh, RequestMeta{}))
	if id == "" {
		t.Fatal("LogAsync always returns an ID")
	}
	// Give the goroutine time to panic; the test fails by crashing if
	// the recover is missing.
	time.Sleep(50 * time.Millisecond)
}

func TestLogger_AsyncEventuallyPersists(t *testing.T) {
	sink := newMemorySink()
	logger := NewLogger(sink)

	id := logger.LogAsync(CSRFFailure("client-a", RequestMeta{Method: "POST"}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sink.get(id); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("async event never reached the sink")
}

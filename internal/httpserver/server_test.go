package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hudsor01/abuseguard/internal/analytics"
	"github.com/hudsor01/abuseguard/internal/config"
	"github.com/hudsor01/abuseguard/internal/events"
	"github.com/hudsor01/abuseguard/internal/ratelimit"
)

// memoryEvents is an in-memory stand-in for the Postgres event store,
// implementing the sink, directory and readiness dependencies.
type memoryEvents struct {
	mu     sync.Mutex
	stored map[string]events.Input
	down   bool
}

func newMemoryEvents() *memoryEvents {
	return &memoryEvents{stored: make(map[string]events.Input)}
}

func (m *memoryEvents) Insert(_ context.Context, id string, in events.Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[id] = in
	return nil
}

func (m *memoryEvents) QueryRecent(_ context.Context, f events.Filter) ([]events.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []events.SecurityEvent
	for id, in := range m.stored {
		if f.Type != "" && in.Type != f.Type {
			continue
		}
		out = append(out, events.SecurityEvent{ID: id, Type: in.Type, Severity: in.Severity, ClientID: in.ClientID})
	}
	return out, nil
}

func (m *memoryEvents) Acknowledge(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stored[id]
	return ok, nil
}

func (m *memoryEvents) Ping(context.Context) error {
	if m.down {
		return errors.New("db unreachable")
	}
	return nil
}

func newTestServer(store *memoryEvents) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := config.Config{AdminToken: "operator-token"}
	engine := ratelimit.NewEngine(ratelimit.NewMemoryStore(), ratelimit.DefaultConfig())

	return NewRouter(cfg, Deps{
		Engine:     engine,
		Aggregator: analytics.NewAggregator(engine),
		Events:     store,
		Logger:     events.NewLogger(store),
		Readiness:  store,
	})
}

func get(r *gin.Engine, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	store := newMemoryEvents()
	r := newTestServer(store)

	if w := get(r, "/health"); w.Code != http.StatusOK {
		t.Errorf("/health = %d, want 200", w.Code)
	}
	if w := get(r, "/ready"); w.Code != http.StatusOK {
		t.Errorf("/ready = %d, want 200", w.Code)
	}

	store.down = true
	if w := get(r, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready with db down = %d, want 503", w.Code)
	}
}

func TestContactIntakeIsGuarded(t *testing.T) {
	r := newTestServer(newMemoryEvents())

	hard := ratelimit.DefaultConfig().Limit("contact-form").HardThreshold
	var last *httptest.ResponseRecorder
	for i := 0; i <= hard; i++ {
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		req.RemoteAddr = "203.0.113.20:1234"
		req.Header.Set("User-Agent", "test-agent")
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Errorf("request %d = %d, want 429", hard+1, last.Code)
	}
}

func TestAdminSurfaceRequiresToken(t *testing.T) {
	r := newTestServer(newMemoryEvents())

	w := get(r, "/api/admin/rate-limit?action=analytics")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/rate-limit?action=analytics", nil)
	req.Header.Set("Authorization", "Bearer operator-token")
	ok := httptest.NewRecorder()
	r.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Fatalf("authorized status = %d, want 200", ok.Code)
	}
	if !strings.Contains(ok.Body.String(), "analytics") {
		t.Error("analytics payload missing")
	}
}

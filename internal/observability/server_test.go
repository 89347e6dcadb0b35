package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/ledger"
	"github.com/arkin-run/arkin/internal/orders"
)

func TestIsOriginAllowedWithExplicitAllowlist(t *testing.T) {
	allowed := []string{"https://dash.example.com"}
	if !isOriginAllowed("https://dash.example.com", allowed, "ignored") {
		t.Fatal("expected allowlisted origin to pass")
	}
	if isOriginAllowed("https://evil.example.com", allowed, "ignored") {
		t.Fatal("expected non-allowlisted origin to fail")
	}
}

func TestIsOriginAllowedLocalhostByDefault(t *testing.T) {
	if !isOriginAllowed("http://localhost:3000", nil, "api.example.com") {
		t.Fatal("expected localhost origin to pass with no allowlist")
	}
}

func TestIsOriginAllowedEmptyOriginPasses(t *testing.T) {
	if !isOriginAllowed("", nil, "api.example.com") {
		t.Fatal("expected empty origin (non-browser client) to pass")
	}
}

func TestHandleHealthReturnsOK(t *testing.T) {
	l := ledger.New()
	book := orders.NewExecutionOrderBook()
	b := bus.New(nil)
	s := NewServer(Config{Port: 0}, NewProvider(l, book), b, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestHandleSnapshotReturnsCurrentState(t *testing.T) {
	l := ledger.New()
	book := orders.NewExecutionOrderBook()
	b := bus.New(nil)
	s := NewServer(Config{Port: 0}, NewProvider(l, book), b, func() time.Time { return time.Unix(0, 0) }, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	w := httptest.NewRecorder()
	s.handleSnapshot(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if !snap.Timestamp.Equal(time.Unix(0, 0)) {
		t.Fatalf("expected snapshot timestamp from injected clock, got %v", snap.Timestamp)
	}
}

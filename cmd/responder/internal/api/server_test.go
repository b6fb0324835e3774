package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/core"
)

func get(t *testing.T, hs *HealthServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthServer_Health(t *testing.T) {
	hs := NewHealthServer(":0")
	if rec := get(t, hs, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("/health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHealthServer_Ready(t *testing.T) {
	hs := NewHealthServer(":0")

	if rec := get(t, hs, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready before SetReady = %d, want 503", rec.Code)
	}
	hs.SetReady(true)
	if rec := get(t, hs, "/ready"); rec.Code != http.StatusOK {
		t.Errorf("/ready after SetReady = %d, want 200", rec.Code)
	}
}

func TestHealthServer_Stats(t *testing.T) {
	hs := NewHealthServer(":0")

	if rec := get(t, hs, "/stats"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/stats without a server = %d, want 503", rec.Code)
	}

	var stats core.Stats
	stats.Live.Store(3)
	stats.Accepted.Add(7)
	stats.Failed.Add(1)
	hs.SetStats(&stats)

	rec := get(t, hs, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("/stats = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got core.StatsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != stats.Snapshot() {
		t.Errorf("/stats = %+v, want %+v", got, stats.Snapshot())
	}
}

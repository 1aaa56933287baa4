package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandlerOK(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(map[string]Check{"nats": func() error { return nil }}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected ok, got %s", body["status"])
	}
}

func TestHandlerDegraded(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(map[string]Check{
		"nats":     func() error { return nil },
		"postgres": func() error { return errors.New("connection refused") },
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "degraded" || body["postgres"] != "connection refused" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["nats"]; ok {
		t.Error("healthy checks should not be listed")
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteJSON_SetsContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"ok": "yes"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestBadGateway_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	BadGateway(rr, "SEARCH_FAILED", "search is unavailable", "rid-1", map[string]any{"provider": "tmdb"})

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != "SEARCH_FAILED" || resp.Error.RequestID != "rid-1" {
		t.Fatalf("unexpected envelope: %+v", resp.Error)
	}
	if resp.Error.Details["provider"] != "tmdb" {
		t.Fatalf("expected provider detail, got %v", resp.Error.Details)
	}
}

func TestUpstreamUnavailable_RetryAfterRoundsUp(t *testing.T) {
	rr := httptest.NewRecorder()
	UpstreamUnavailable(rr, "UPSTREAM_UNAVAILABLE", "try later", "rid-2", 1500*time.Millisecond, nil)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if ra := rr.Header().Get("Retry-After"); ra != "2" {
		t.Fatalf("expected Retry-After 2, got %q", ra)
	}
}

func TestUpstreamUnavailable_NoRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	UpstreamUnavailable(rr, "UPSTREAM_UNAVAILABLE", "try later", "", 0, nil)

	if ra := rr.Header().Get("Retry-After"); ra != "" {
		t.Fatalf("expected no Retry-After, got %q", ra)
	}
}

func TestClientClosed(t *testing.T) {
	rr := httptest.NewRecorder()
	ClientClosed(rr)

	if rr.Code != StatusClientClosedRequest {
		t.Fatalf("expected 499, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}
}

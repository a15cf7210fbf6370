package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/progress"
)

func TestProgress_PutThenGet(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV(), nil)

	rr := httptest.NewRecorder()
	PutProgress(store).ServeHTTP(rr, chiReq(http.MethodPut, "/v1/progress/603",
		[]byte(`{"timestamp_seconds":42.5}`), map[string]string{"media_id": "603"}))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	GetProgress(store).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/progress/603", nil, map[string]string{"media_id": "603"}))
	resp := decodeBody[progressResponse](t, rr)
	if resp.TimestampSeconds == nil || *resp.TimestampSeconds != 42.5 {
		t.Fatalf("expected 42.5, got %v", resp.TimestampSeconds)
	}
}

func TestProgress_GetMissingIsNull(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV(), nil)

	rr := httptest.NewRecorder()
	GetProgress(store).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/progress/1", nil, map[string]string{"media_id": "1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decodeBody[progressResponse](t, rr); resp.TimestampSeconds != nil {
		t.Fatalf("expected null timestamp, got %v", *resp.TimestampSeconds)
	}
}

func TestProgress_PutRejectsNegative(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV(), nil)

	for _, body := range []string{`{"timestamp_seconds":-1}`, `{}`} {
		rr := httptest.NewRecorder()
		PutProgress(store).ServeHTTP(rr, chiReq(http.MethodPut, "/v1/progress/1", []byte(body), map[string]string{"media_id": "1"}))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestPlayerMessage_AppliedInline(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV(), nil)

	rr := httptest.NewRecorder()
	PlayerMessage(store, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodPost, "/v1/progress/messages",
		[]byte(`{"id":"21","timestamp":300,"duration":1400}`), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decodeBody[map[string]bool](t, rr); !resp["stored"] {
		t.Fatal("expected message to be stored")
	}
	if secs, ok := store.Load(context.Background(), "21"); !ok || secs != 300 {
		t.Fatalf("expected 300, got %v (%v)", secs, ok)
	}
}

func TestPlayerMessage_IgnoresNoise(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV(), nil)

	rr := httptest.NewRecorder()
	PlayerMessage(store, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodPost, "/v1/progress/messages",
		[]byte(`player ready`), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decodeBody[map[string]bool](t, rr); resp["stored"] {
		t.Fatal("expected noise to be dropped")
	}
}

func TestEventPublisher_DisabledWithoutJetStream(t *testing.T) {
	p := NewEventPublisher(nil, true)
	if p.Enabled() {
		t.Fatal("publisher without JetStream must be disabled")
	}
	if _, err := p.PublishRaw(SubjectProgressMessages, []byte(`{}`)); err != ErrAsyncPublishDisabled {
		t.Fatalf("expected ErrAsyncPublishDisabled, got %v", err)
	}
	var nilPub *EventPublisher
	if nilPub.Enabled() {
		t.Fatal("nil publisher must be disabled")
	}
}

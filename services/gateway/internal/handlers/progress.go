package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/gateway/internal/progress"
)

// ProgressStore is the watch-progress surface the handlers use.
type ProgressStore interface {
	ProgressReader
	Save(ctx context.Context, mediaID string, seconds float64)
	Apply(ctx context.Context, payload []byte) bool
}

type progressResponse struct {
	MediaID          string   `json:"media_id"`
	TimestampSeconds *float64 `json:"timestamp_seconds"`
}

type saveProgressRequest struct {
	TimestampSeconds *float64 `json:"timestamp_seconds"`
}

// GetProgress handles GET /v1/progress/{media_id}. Missing or unreadable
// progress is reported as a null timestamp.
func GetProgress(store ProgressReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "media_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "media_id is required", rid, nil)
			return
		}
		out := progressResponse{MediaID: id}
		if secs, ok := store.Load(r.Context(), id); ok {
			out.TimestampSeconds = &secs
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// PutProgress handles PUT /v1/progress/{media_id}
func PutProgress(store ProgressStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "media_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "media_id is required", rid, nil)
			return
		}
		var req saveProgressRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if req.TimestampSeconds == nil || *req.TimestampSeconds < 0 {
			api.BadRequest(w, "INVALID_TIMESTAMP", "timestamp_seconds must be a non-negative number", rid,
				map[string]any{"timestamp_seconds": "required, >= 0"})
			return
		}
		store.Save(r.Context(), id, *req.TimestampSeconds)
		w.WriteHeader(http.StatusNoContent)
	}
}

// PlayerMessage handles POST /v1/progress/messages. The body is the raw
// message posted by the embedded player. With async writes enabled it is
// queued for the progress worker; otherwise it is applied inline.
// Messages that are not progress reports are accepted and dropped.
func PlayerMessage(store ProgressStore, pub *EventPublisher, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
		if err != nil {
			api.BadRequest(w, "BODY_TOO_LARGE", "message body is too large", rid, nil)
			return
		}

		if _, ok := progress.MessageID(body); !ok {
			api.WriteJSON(w, http.StatusOK, map[string]any{"stored": false})
			return
		}

		if pub.Enabled() {
			eventID, err := pub.PublishRaw(SubjectProgressMessages, body)
			if err == nil {
				api.WriteJSON(w, http.StatusAccepted, map[string]any{"event_id": eventID})
				return
			}
			log.Warn("progress publish failed, applying inline", zap.String("request_id", rid), zap.Error(err))
		}

		stored := store.Apply(r.Context(), body)
		api.WriteJSON(w, http.StatusOK, map[string]any{"stored": stored})
	}
}

package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
)

// Invalidator drops cached catalog pages in this process.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// Broadcaster fans an invalidation out to every replica. *nats.Conn
// satisfies it.
type Broadcaster interface {
	Publish(subject string, data []byte) error
}

type invalidateRequest struct {
	Key string `json:"key"`
}

// InvalidateCache handles POST /v1/admin/cache/invalidate. An empty key
// or "ALL" clears the whole cache. With a broadcaster the request is
// published so every replica (this one included) invalidates.
func InvalidateCache(local Invalidator, bus Broadcaster, subject string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req invalidateRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		key := strings.TrimSpace(req.Key)

		if bus != nil && subject != "" {
			err := bus.Publish(subject, []byte(key))
			if err == nil {
				api.WriteJSON(w, http.StatusAccepted, map[string]any{"key": key, "broadcast": true})
				return
			}
			log.Warn("cache invalidation publish failed, invalidating locally", zap.String("request_id", rid), zap.Error(err))
		}
		if err := local.Invalidate(r.Context(), key); err != nil {
			log.Error("cache invalidation failed", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"key": key, "broadcast": false})
	}
}

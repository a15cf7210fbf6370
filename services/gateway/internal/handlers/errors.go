package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/services/gateway/internal/media"
)

// breakerRetryAfter matches the default CB_TIMEOUT before a half-open probe.
const breakerRetryAfter = 30 * time.Second

// writeFetchError maps adapter failures onto the error envelope.
func writeFetchError(w http.ResponseWriter, rid, code string, err error) {
	if errors.Is(err, media.ErrNotFound) {
		api.NotFound(w, "NOT_FOUND", "title not found", rid)
		return
	}
	if errors.Is(err, context.Canceled) {
		api.ClientClosed(w)
		return
	}
	var fe *media.FetchError
	if errors.As(err, &fe) {
		details := map[string]any{"provider": fe.Provider, "kind": string(fe.Kind)}
		if fe.Status != 0 {
			details["status"] = fe.Status
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			api.UpstreamUnavailable(w, "UPSTREAM_UNAVAILABLE", "Upstream catalog is temporarily unavailable", rid, breakerRetryAfter, details)
			return
		}
		api.BadGateway(w, code, "Upstream catalog is unavailable", rid, details)
		return
	}
	api.Internal(w, rid)
}

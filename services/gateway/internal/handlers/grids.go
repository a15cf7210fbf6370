package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/gateway/internal/catalog"
	"github.com/example/media-platform/services/gateway/internal/grid"
)

type createGridRequest struct {
	Scope    string `json:"scope"`
	Category string `json:"category"`
}

type gridResponse struct {
	ID     string `json:"id"`
	Issued bool   `json:"issued"`
	grid.State
}

// CreateGrid handles POST /v1/grids. The first page is loaded before the
// response is written; a failed load is reported in the state, not as an
// HTTP error.
func CreateGrid(reg *grid.Registry, ap *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req createGridRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		sel := grid.Selector{
			Scope:    strings.ToLower(strings.TrimSpace(req.Scope)),
			Category: strings.ToLower(strings.TrimSpace(req.Category)),
		}

		// a client hanging up must not leave the grid in the error state
		ctx := context.WithoutCancel(r.Context())
		id, c := reg.Create()
		if err := c.Start(ctx, sel); err != nil {
			reg.Delete(id)
			if errors.Is(err, catalog.ErrUnknownSelector) {
				api.NotFound(w, "UNKNOWN_CATEGORY", err.Error(), rid)
				return
			}
			api.Internal(w, rid)
			return
		}

		st := c.State()
		uid, _ := auth.UserIDFromContext(r.Context())
		ap.Publish(analytics.SubjectGridLoaded, "grid_loaded", uid, map[string]any{
			"scope":    sel.Scope,
			"category": sel.Category,
			"page":     st.Cursor.PageNumber,
			"status":   string(st.Status),
		})
		api.WriteJSON(w, http.StatusCreated, gridResponse{ID: id, Issued: true, State: st})
	}
}

// NextGridPage handles POST /v1/grids/{grid_id}/next. Issued is false when
// the grid was busy, errored or exhausted.
func NextGridPage(reg *grid.Registry, ap *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "grid_id"))

		c, err := reg.Get(id)
		if err != nil {
			api.NotFound(w, "GRID_NOT_FOUND", "grid not found or expired", rid)
			return
		}

		issued := c.LoadNextIfNeeded(context.WithoutCancel(r.Context()))
		st := c.State()
		if issued {
			uid, _ := auth.UserIDFromContext(r.Context())
			ap.Publish(analytics.SubjectGridLoaded, "grid_loaded", uid, map[string]any{
				"scope":    st.Selector.Scope,
				"category": st.Selector.Category,
				"page":     st.Cursor.PageNumber,
				"status":   string(st.Status),
			})
		}
		api.WriteJSON(w, http.StatusOK, gridResponse{ID: id, Issued: issued, State: st})
	}
}

// GetGrid handles GET /v1/grids/{grid_id}
func GetGrid(reg *grid.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "grid_id"))

		c, err := reg.Get(id)
		if err != nil {
			api.NotFound(w, "GRID_NOT_FOUND", "grid not found or expired", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, gridResponse{ID: id, State: c.State()})
	}
}

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
	"github.com/example/media-platform/services/gateway/internal/media"
)

// PageSource serves one page of a browse list.
type PageSource interface {
	Page(ctx context.Context, sel grid.Selector, page int) (media.Page, error)
}

type catalogPageResponse struct {
	Scope    string          `json:"scope"`
	Category string          `json:"category"`
	Page     int             `json:"page"`
	Items    []media.Summary `json:"items"`
	HasMore  bool            `json:"has_more"`
}

// ListCategories handles GET /v1/catalog
func ListCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]any{"categories": catalog.Categories()})
	}
}

// CatalogPage handles GET /v1/catalog/{scope}/{category}?page=n
func CatalogPage(src PageSource, ap *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		sel := grid.Selector{
			Scope:    strings.ToLower(strings.TrimSpace(chi.URLParam(r, "scope"))),
			Category: strings.ToLower(strings.TrimSpace(chi.URLParam(r, "category"))),
		}
		page := parseInt(r.URL.Query().Get("page"), 1, 1, 500)

		p, err := src.Page(r.Context(), sel, page)
		if err != nil {
			if errors.Is(err, catalog.ErrUnknownSelector) {
				api.NotFound(w, "UNKNOWN_CATEGORY", err.Error(), rid)
				return
			}
			writeFetchError(w, rid, "CATALOG_FAILED", err)
			return
		}

		uid, _ := auth.UserIDFromContext(r.Context())
		ap.Publish(analytics.SubjectCatalogViewed, "catalog_viewed", uid, map[string]any{
			"scope":    sel.Scope,
			"category": sel.Category,
			"page":     page,
		})

		items := p.Items
		if items == nil {
			items = []media.Summary{}
		}
		api.WriteJSON(w, http.StatusOK, catalogPageResponse{
			Scope:    sel.Scope,
			Category: sel.Category,
			Page:     page,
			Items:    items,
			HasMore:  p.HasMore,
		})
	}
}

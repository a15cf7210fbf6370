package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/gateway/internal/anilist"
	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/tmdb"
)

// TitleDetailer is the movie/TV title page surface.
type TitleDetailer interface {
	Details(ctx context.Context, kind media.Kind, id string) (tmdb.Detail, error)
	Recommendations(ctx context.Context, kind media.Kind, id string) ([]media.Summary, error)
	SeasonEpisodes(ctx context.Context, tvID string, season int) ([]tmdb.Episode, error)
}

// AnimeDetailer is the anime title page surface.
type AnimeDetailer interface {
	Detail(ctx context.Context, id string) (anilist.Detail, error)
}

type titleResponse struct {
	Title           any             `json:"title"`
	Recommendations []media.Summary `json:"recommendations"`
}

// GetTitle handles GET /v1/titles/{kind}/{id}
func GetTitle(titles TitleDetailer, anime AnimeDetailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		kind, err := media.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			api.BadRequest(w, "INVALID_KIND", err.Error(), rid, nil)
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "id is required", rid, nil)
			return
		}

		if kind == media.KindAnime {
			d, err := anime.Detail(r.Context(), id)
			if err != nil {
				writeFetchError(w, rid, "TITLE_FAILED", err)
				return
			}
			recs := d.Recommendations
			if recs == nil {
				recs = []media.Summary{}
			}
			api.WriteJSON(w, http.StatusOK, titleResponse{Title: d, Recommendations: recs})
			return
		}

		d, err := titles.Details(r.Context(), kind, id)
		if err != nil {
			writeFetchError(w, rid, "TITLE_FAILED", err)
			return
		}
		// recommendations are optional on the title page
		recs, err := titles.Recommendations(r.Context(), kind, id)
		if err != nil || recs == nil {
			recs = []media.Summary{}
		}
		api.WriteJSON(w, http.StatusOK, titleResponse{Title: d, Recommendations: recs})
	}
}

// GetSeason handles GET /v1/titles/tv/{id}/seasons/{season}
func GetSeason(titles TitleDetailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "id is required", rid, nil)
			return
		}
		season, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "season")))
		if err != nil || season < 0 {
			api.BadRequest(w, "INVALID_SEASON", "season must be a non-negative integer", rid, nil)
			return
		}

		eps, err := titles.SeasonEpisodes(r.Context(), id, season)
		if err != nil {
			writeFetchError(w, rid, "SEASON_FAILED", err)
			return
		}
		if eps == nil {
			eps = []tmdb.Episode{}
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"tv_id": id, "season": season, "episodes": eps})
	}
}

package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/gateway/internal/playback"
)

// ProgressReader is the read side of the progress store.
type ProgressReader interface {
	Load(ctx context.Context, mediaID string) (float64, bool)
}

type playbackResponse struct {
	playback.Embed
	ResumeAt *int `json:"resume_at"`
}

// ListSources handles GET /v1/playback/sources
func ListSources(res *playback.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]any{"sources": res.Sources()})
	}
}

// ResolvePlayback handles GET /v1/playback/{kind}/{id}?season&episode&source&resume&start.
// The saved position is used unless resume=false; start=N overrides it.
func ResolvePlayback(res *playback.Resolver, progress ProgressReader, ap *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := r.URL.Query()

		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "id is required", rid, nil)
			return
		}
		kind := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind")))
		season := parseInt(q.Get("season"), 1, 1, 1000)
		episode := parseInt(q.Get("episode"), 1, 1, 100000)

		resumeAt := parseOptionalInt(q.Get("start"))
		if resumeAt == nil && wantsResume(q.Get("resume")) && progress != nil {
			if secs, ok := progress.Load(r.Context(), id); ok {
				v := int(math.Floor(secs))
				resumeAt = &v
			}
		}

		var out playbackResponse
		switch kind {
		case "movie":
			out.Embed = res.Resolve(playback.Request{
				Kind:        playback.KindMovie,
				MediaID:     id,
				SourceIndex: parseInt(q.Get("source"), 0, math.MinInt32, math.MaxInt32),
				ResumeAt:    resumeAt,
			})
		case "tv":
			out.Embed = res.Resolve(playback.Request{
				Kind:        playback.KindTVEpisode,
				MediaID:     id,
				Season:      season,
				Episode:     episode,
				SourceIndex: parseInt(q.Get("source"), 0, math.MinInt32, math.MaxInt32),
				ResumeAt:    resumeAt,
			})
		case "anime":
			out.Embed = playback.Embed{
				URL:          playback.AnimeURL(id, season, episode, resumeAt),
				SourceName:   "videasy",
				SourceIndex:  0,
				TotalSources: 1,
				HasAds:       true,
			}
		default:
			api.BadRequest(w, "INVALID_KIND", "kind must be movie, tv or anime", rid, nil)
			return
		}
		out.ResumeAt = resumeAt

		uid, _ := auth.UserIDFromContext(r.Context())
		ap.Publish(analytics.SubjectPlaybackStarted, "playback_started", uid, map[string]any{
			"kind":     kind,
			"media_id": id,
			"source":   out.SourceName,
			"resumed":  resumeAt != nil,
		})
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// NextSource handles GET /v1/playback/next?source=i
func NextSource(res *playback.Resolver, ap *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		raw := strings.TrimSpace(r.URL.Query().Get("source"))
		cur := 0
		if raw != "" {
			i, err := strconv.Atoi(raw)
			if err != nil {
				api.BadRequest(w, "INVALID_SOURCE", "source must be an integer", rid, nil)
				return
			}
			cur = i
		}
		next := res.Advance(cur)
		name := res.Sources()[next].Name

		uid, _ := auth.UserIDFromContext(r.Context())
		ap.Publish(analytics.SubjectPlaybackSwitched, "playback_source_switched", uid, map[string]any{
			"from": cur,
			"to":   next,
		})
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"source_index":  next,
			"source_name":   name,
			"total_sources": res.Count(),
		})
	}
}

func wantsResume(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v != "0" && v != "false" && v != "no"
}

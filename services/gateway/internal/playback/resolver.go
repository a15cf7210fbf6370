package playback

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

var ErrSourceOutOfRange = errors.New("source index out of range")

// MediaKind is what is being played.
type MediaKind string

const (
	KindMovie     MediaKind = "movie"
	KindTVEpisode MediaKind = "tv_episode"
)

// Request selects a title and a source.
type Request struct {
	Kind        MediaKind
	MediaID     string
	Season      int
	Episode     int
	SourceIndex int
	// ResumeAt is a start offset in seconds, honoured by sources that
	// declare a resume parameter.
	ResumeAt *int
}

// Embed is what the player frame loads.
type Embed struct {
	URL          string `json:"url"`
	SourceName   string `json:"source_name"`
	SourceIndex  int    `json:"source_index"`
	TotalSources int    `json:"total_sources"`
	SandboxSafe  bool   `json:"sandbox_safe"`
	HasAds       bool   `json:"has_ads"`
}

// SourceInfo is the public listing of one source.
type SourceInfo struct {
	Name        string `json:"name"`
	Index       int    `json:"index"`
	HasAds      bool   `json:"has_ads"`
	SandboxSafe bool   `json:"sandbox_safe"`
}

// Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	sources []Source
}

func NewResolver(sources []Source) (*Resolver, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one playback source is required")
	}
	for _, s := range sources {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}
	return &Resolver{sources: append([]Source(nil), sources...)}, nil
}

// Count is the number of configured sources.
func (r *Resolver) Count() int { return len(r.sources) }

// Resolve builds the embed for req. An out-of-range index resolves as
// index 0; missing season or episode numbers default to 1.
func (r *Resolver) Resolve(req Request) Embed {
	idx := req.SourceIndex
	if idx < 0 || idx >= len(r.sources) {
		idx = 0
	}
	src := r.sources[idx]

	var raw string
	if req.Kind == KindTVEpisode {
		season, episode := req.Season, req.Episode
		if season < 1 {
			season = 1
		}
		if episode < 1 {
			episode = 1
		}
		raw = src.BuildEpisodeURL(req.MediaID, season, episode)
	} else {
		raw = src.BuildMovieURL(req.MediaID)
	}
	if req.ResumeAt != nil && *req.ResumeAt > 0 && src.ResumeParam != "" {
		raw = withQuery(raw, src.ResumeParam, strconv.Itoa(*req.ResumeAt))
	}

	return Embed{
		URL:          raw,
		SourceName:   src.Name,
		SourceIndex:  idx,
		TotalSources: len(r.sources),
		SandboxSafe:  src.SandboxSafe,
		HasAds:       src.HasAds,
	}
}

// Advance returns the source after i, wrapping to the first.
func (r *Resolver) Advance(i int) int {
	n := len(r.sources)
	return ((i+1)%n + n) % n
}

// Select validates an explicit source choice.
func (r *Resolver) Select(i int) (int, error) {
	if i < 0 || i >= len(r.sources) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrSourceOutOfRange, i, len(r.sources))
	}
	return i, nil
}

// Sources lists the configured sources in order.
func (r *Resolver) Sources() []SourceInfo {
	out := make([]SourceInfo, len(r.sources))
	for i, s := range r.sources {
		out[i] = SourceInfo{Name: s.Name, Index: i, HasAds: s.HasAds, SandboxSafe: s.SandboxSafe}
	}
	return out
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

const animeEmbedBase = "https://player.videasy.net/anime/"

// AnimeURL builds the videasy anime player URL for an AniList id. It is
// the only source that resolves AniList ids.
func AnimeURL(anilistID string, season, episode int, resumeAt *int) string {
	if season < 1 {
		season = 1
	}
	if episode < 1 {
		episode = 1
	}
	u := fmt.Sprintf("%s%s/%d/%d?episodeSelector=true&nextEpisode=true&autoplayNextEpisode=true&overlay=true&color=ffbd7b",
		animeEmbedBase, url.PathEscape(anilistID), season, episode)
	if resumeAt != nil && *resumeAt > 0 {
		u += "&progress=" + strconv.Itoa(*resumeAt)
	}
	return u
}

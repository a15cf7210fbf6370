package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/media-platform/services/gateway/internal/media"
)

// Detail is the title page payload for a movie or TV show.
type Detail struct {
	media.Summary
	Tagline          string   `json:"tagline,omitempty"`
	Genres           []string `json:"genres"`
	Status           string   `json:"status,omitempty"`
	RuntimeMinutes   *int     `json:"runtime_minutes"`
	BackdropURL      *string  `json:"backdrop_url"`
	NumberOfSeasons  int      `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes int      `json:"number_of_episodes,omitempty"`
	Seasons          []Season `json:"seasons,omitempty"`
}

type Season struct {
	Number       int     `json:"season_number"`
	Name         string  `json:"name"`
	EpisodeCount int     `json:"episode_count"`
	Year         *int    `json:"year"`
	PosterURL    *string `json:"poster_url"`
}

type Episode struct {
	Number         int      `json:"episode_number"`
	Name           string   `json:"name"`
	Overview       string   `json:"overview"`
	Year           *int     `json:"year"`
	StillURL       *string  `json:"still_url"`
	RuntimeMinutes *int     `json:"runtime_minutes"`
	Score          *float64 `json:"score"`
}

type detailResponse struct {
	item
	Tagline string `json:"tagline"`
	Status  string `json:"status"`
	Runtime int    `json:"runtime"`
	Genres  []struct {
		Name string `json:"name"`
	} `json:"genres"`
	EpisodeRunTime   []int `json:"episode_run_time"`
	NumberOfSeasons  int   `json:"number_of_seasons"`
	NumberOfEpisodes int   `json:"number_of_episodes"`
	Seasons          []struct {
		SeasonNumber int    `json:"season_number"`
		Name         string `json:"name"`
		EpisodeCount int    `json:"episode_count"`
		AirDate      string `json:"air_date"`
		PosterPath   string `json:"poster_path"`
	} `json:"seasons"`
}

type seasonResponse struct {
	Episodes []struct {
		EpisodeNumber int     `json:"episode_number"`
		Name          string  `json:"name"`
		Overview      string  `json:"overview"`
		AirDate       string  `json:"air_date"`
		StillPath     string  `json:"still_path"`
		Runtime       int     `json:"runtime"`
		VoteAverage   float64 `json:"vote_average"`
	} `json:"episodes"`
}

func kindPath(kind media.Kind) (string, error) {
	switch kind {
	case media.KindMovie, media.KindTV:
		return string(kind), nil
	default:
		return "", fmt.Errorf("tmdb does not serve %q titles", kind)
	}
}

func langQuery() url.Values {
	q := url.Values{}
	q.Set("language", language)
	return q
}

// Details loads the title page of a movie or TV show.
func (c *Client) Details(ctx context.Context, kind media.Kind, id string) (Detail, error) {
	kp, err := kindPath(kind)
	if err != nil {
		return Detail{}, err
	}
	resp, err := get[detailResponse](ctx, c, "details", kp+"/"+url.PathEscape(id), langQuery())
	if err != nil {
		return Detail{}, err
	}
	d := Detail{
		Summary:          c.toSummary(kind, resp.item),
		Tagline:          resp.Tagline,
		Status:           resp.Status,
		Genres:           make([]string, 0, len(resp.Genres)),
		NumberOfSeasons:  resp.NumberOfSeasons,
		NumberOfEpisodes: resp.NumberOfEpisodes,
	}
	if resp.BackdropPath != "" {
		d.BackdropURL = media.StringPtr(c.ImageBase + "/original" + resp.BackdropPath)
	}
	for _, g := range resp.Genres {
		d.Genres = append(d.Genres, g.Name)
	}
	runtime := resp.Runtime
	if runtime == 0 && len(resp.EpisodeRunTime) > 0 {
		runtime = resp.EpisodeRunTime[0]
	}
	if runtime > 0 {
		d.RuntimeMinutes = &runtime
	}
	for _, s := range resp.Seasons {
		season := Season{
			Number:       s.SeasonNumber,
			Name:         s.Name,
			EpisodeCount: s.EpisodeCount,
			Year:         media.YearFromDate(s.AirDate),
		}
		if s.PosterPath != "" {
			season.PosterURL = media.StringPtr(c.ImageBase + "/" + posterSize + s.PosterPath)
		}
		d.Seasons = append(d.Seasons, season)
	}
	return d, nil
}

// Recommendations returns the first page of titles similar to id.
func (c *Client) Recommendations(ctx context.Context, kind media.Kind, id string) ([]media.Summary, error) {
	kp, err := kindPath(kind)
	if err != nil {
		return nil, err
	}
	q := langQuery()
	q.Set("page", "1")
	resp, err := get[listResponse](ctx, c, "recommendations", kp+"/"+url.PathEscape(id)+"/recommendations", q)
	if err != nil {
		return nil, err
	}
	return c.toPage(resp, 1, func(item) (media.Kind, bool) { return kind, true }).Items, nil
}

// SeasonEpisodes lists the episodes of one season of a TV show.
func (c *Client) SeasonEpisodes(ctx context.Context, tvID string, season int) ([]Episode, error) {
	path := "tv/" + url.PathEscape(strings.TrimSpace(tvID)) + "/season/" + strconv.Itoa(season)
	resp, err := get[seasonResponse](ctx, c, "season", path, langQuery())
	if err != nil {
		return nil, err
	}
	out := make([]Episode, 0, len(resp.Episodes))
	for _, e := range resp.Episodes {
		ep := Episode{
			Number:   e.EpisodeNumber,
			Name:     e.Name,
			Overview: e.Overview,
			Year:     media.YearFromDate(e.AirDate),
		}
		if e.StillPath != "" {
			ep.StillURL = media.StringPtr(c.ImageBase + "/" + backdropSize + e.StillPath)
		}
		if e.Runtime > 0 {
			rt := e.Runtime
			ep.RuntimeMinutes = &rt
		}
		if e.VoteAverage > 0 {
			ep.Score = media.NormalizeScore(e.VoteAverage)
		}
		out = append(out, ep)
	}
	return out, nil
}

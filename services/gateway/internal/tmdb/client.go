// Package tmdb adapts the TMDB REST API (movies and TV) to media summaries.
package tmdb

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/upstream"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p"
	posterSize          = "w500"
	backdropSize        = "w780"
	language            = "en-US"
)

type Config struct {
	BaseURL      string
	ImageBaseURL string
	Token        string
	Timeout      time.Duration
}

type Client struct {
	BaseURL   string
	ImageBase string
	Token     string
	caller    *upstream.Caller
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.caller.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.caller.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.caller.HTTP = hc }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	c := &Client{
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		ImageBase: strings.TrimRight(cfg.ImageBaseURL, "/"),
		Token:     cfg.Token,
		caller:    upstream.NewCaller("tmdb", cfg.Timeout),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Category names a paged list endpoint such as "movie/popular" or
// "trending/tv/week". Kind decides how items are mapped.
type Category struct {
	Kind     media.Kind
	Endpoint string
}

// Scope selects the search endpoint.
type Scope string

const (
	ScopeMovie Scope = "movie"
	ScopeTV    Scope = "tv"
	ScopeMulti Scope = "multi"
)

type listResponse struct {
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
	Results      []item `json:"results"`
}

type item struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Overview     string  `json:"overview"`
}

// FetchCategoryPage loads one page of a category list.
func (c *Client) FetchCategoryPage(ctx context.Context, cat Category, page int) (media.Page, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))
	resp, err := get[listResponse](ctx, c, "category", strings.Trim(cat.Endpoint, "/"), q)
	if err != nil {
		return media.Page{}, err
	}
	return c.toPage(resp, page, func(item) (media.Kind, bool) { return cat.Kind, true }), nil
}

// SearchPage runs a title search. Multi search drops everything that is not
// a movie or a TV show.
func (c *Client) SearchPage(ctx context.Context, query string, scope Scope, page int) (media.Page, error) {
	if strings.TrimSpace(query) == "" {
		return media.Page{Items: []media.Summary{}}, nil
	}
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))
	q.Set("include_adult", "true")
	resp, err := get[listResponse](ctx, c, "search", "search/"+string(scope), q)
	if err != nil {
		return media.Page{}, err
	}
	return c.toPage(resp, page, func(it item) (media.Kind, bool) {
		switch scope {
		case ScopeMovie:
			return media.KindMovie, true
		case ScopeTV:
			return media.KindTV, true
		}
		switch it.MediaType {
		case "movie":
			return media.KindMovie, true
		case "tv":
			return media.KindTV, true
		}
		return "", false
	}), nil
}

func (c *Client) toPage(resp *listResponse, page int, kindOf func(item) (media.Kind, bool)) media.Page {
	out := media.Page{Items: make([]media.Summary, 0, len(resp.Results)), TotalPages: resp.TotalPages}
	for _, it := range resp.Results {
		kind, ok := kindOf(it)
		if !ok {
			continue
		}
		out.Items = append(out.Items, c.toSummary(kind, it))
	}
	out.HasMore = len(resp.Results) > 0 && page < resp.TotalPages
	return out
}

func (c *Client) toSummary(kind media.Kind, it item) media.Summary {
	s := media.Summary{
		Provider:   kind,
		ExternalID: strconv.FormatInt(it.ID, 10),
		Overview:   it.Overview,
		ImageURL:   c.image(it.PosterPath, it.BackdropPath),
	}
	if kind == media.KindTV {
		s.Title = firstNonEmpty(it.Name, it.Title)
		s.Year = media.YearFromDate(it.FirstAirDate)
	} else {
		s.Title = firstNonEmpty(it.Title, it.Name)
		s.Year = media.YearFromDate(it.ReleaseDate)
	}
	if s.Title == "" {
		s.Title = "Untitled"
	}
	if it.VoteCount > 0 || it.VoteAverage > 0 {
		s.Score = media.NormalizeScore(it.VoteAverage)
	}
	return s
}

// image prefers the poster over the backdrop.
func (c *Client) image(poster, backdrop string) *string {
	if poster != "" {
		return media.StringPtr(c.ImageBase + "/" + posterSize + poster)
	}
	if backdrop != "" {
		return media.StringPtr(c.ImageBase + "/" + backdropSize + backdrop)
	}
	return nil
}

func get[T any](ctx context.Context, c *Client, op, path string, q url.Values) (*T, error) {
	u := c.BaseURL + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &media.FetchError{Provider: "tmdb", Op: op, Kind: media.ErrTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	return upstream.Do[T](c.caller, op, req)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

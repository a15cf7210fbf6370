// Package anilist adapts the AniList GraphQL API (anime) to media summaries.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/ratelimit"
	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/upstream"
)

const (
	DefaultEndpoint = "https://graphql.anilist.co"
	DefaultPerPage  = 20
	// summaryOverviewRunes bounds overviews shown on grid cards.
	summaryOverviewRunes = 160
)

// Sort values accepted by the Media query.
const (
	SortTrending   = "TRENDING_DESC"
	SortPopularity = "POPULARITY_DESC"
	SortScore      = "SCORE_DESC"
	SortSearch     = "SEARCH_MATCH"
)

type Client struct {
	Endpoint string
	caller   *upstream.Caller
	limiter  *ratelimit.Limiter
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

// WithLimiter paces requests to stay under the public API quota.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func New(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		Endpoint: endpoint,
		caller:   upstream.NewCaller("anilist", timeout),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PageQuery selects one page of the anime catalog.
type PageQuery struct {
	Page    int
	PerPage int
	Sort    []string
	Search  string
	// Released drops titles that are not yet released or were cancelled.
	Released bool
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type envelope[T any] struct {
	Data   *T         `json:"data"`
	Errors []gqlError `json:"errors"`
}

type title struct {
	English string `json:"english"`
	Romaji  string `json:"romaji"`
	Native  string `json:"native"`
}

type coverImage struct {
	ExtraLarge string `json:"extraLarge"`
	Large      string `json:"large"`
	Medium     string `json:"medium"`
	Color      string `json:"color"`
}

type mediaItem struct {
	ID           int64      `json:"id"`
	Title        title      `json:"title"`
	CoverImage   coverImage `json:"coverImage"`
	BannerImage  string     `json:"bannerImage"`
	AverageScore *int       `json:"averageScore"`
	StartDate    struct {
		Year *int `json:"year"`
	} `json:"startDate"`
	Description string `json:"description"`
}

type pageData struct {
	Page struct {
		PageInfo struct {
			CurrentPage int  `json:"currentPage"`
			HasNextPage bool `json:"hasNextPage"`
			LastPage    int  `json:"lastPage"`
		} `json:"pageInfo"`
		Media []mediaItem `json:"media"`
	} `json:"Page"`
}

const mediaFields = `id
      title { english romaji native }
      coverImage { extraLarge large medium color }
      bannerImage
      averageScore
      startDate { year }
      description(asHtml: true)`

const pageQuery = `query ($page: Int, $perPage: Int, $sort: [MediaSort], $search: String, $statusNotIn: [MediaStatus]) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { currentPage hasNextPage lastPage }
    media(type: ANIME, sort: $sort, search: $search, status_not_in: $statusNotIn) {
      ` + mediaFields + `
    }
  }
}`

// FetchTrendingPage loads one page of currently trending, released anime.
func (c *Client) FetchTrendingPage(ctx context.Context, page, perPage int) (media.Page, error) {
	return c.FetchPage(ctx, PageQuery{Page: page, PerPage: perPage, Sort: []string{SortTrending}, Released: true})
}

// Search matches anime titles. A blank query returns an empty page without
// a network call.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (media.Page, error) {
	if strings.TrimSpace(query) == "" {
		return media.Page{Items: []media.Summary{}}, nil
	}
	return c.FetchPage(ctx, PageQuery{Page: page, PerPage: perPage, Sort: []string{SortSearch}, Search: query})
}

func (c *Client) FetchPage(ctx context.Context, pq PageQuery) (media.Page, error) {
	if pq.Page < 1 {
		pq.Page = 1
	}
	if pq.PerPage <= 0 {
		pq.PerPage = DefaultPerPage
	}
	if len(pq.Sort) == 0 {
		pq.Sort = []string{SortTrending}
	}
	vars := map[string]any{"page": pq.Page, "perPage": pq.PerPage, "sort": pq.Sort}
	if s := strings.TrimSpace(pq.Search); s != "" {
		vars["search"] = s
	}
	if pq.Released {
		vars["statusNotIn"] = []string{"NOT_YET_RELEASED", "CANCELLED"}
	}

	data, err := query[pageData](ctx, c, "page", pageQuery, vars)
	if err != nil {
		return media.Page{}, err
	}
	out := media.Page{
		Items:      make([]media.Summary, 0, len(data.Page.Media)),
		HasMore:    data.Page.PageInfo.HasNextPage && len(data.Page.Media) > 0,
		TotalPages: data.Page.PageInfo.LastPage,
	}
	for _, m := range data.Page.Media {
		out.Items = append(out.Items, toSummary(m, summaryOverviewRunes))
	}
	return out, nil
}

func query[T any](ctx context.Context, c *Client, op, q string, vars map[string]any) (*T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &media.FetchError{Provider: "anilist", Op: op, Kind: media.ErrTransport, Err: err}
	}
	body, err := json.Marshal(gqlRequest{Query: q, Variables: vars})
	if err != nil {
		return nil, &media.FetchError{Provider: "anilist", Op: op, Kind: media.ErrMalformed, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &media.FetchError{Provider: "anilist", Op: op, Kind: media.ErrTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := upstream.Do[envelope[T]](c.caller, op, req)
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		fe := &media.FetchError{Provider: "anilist", Op: op, Kind: media.ErrUpstream, Err: errors.New("response has no data")}
		if len(env.Errors) > 0 {
			fe.Err = errors.New(env.Errors[0].Message)
			if env.Errors[0].Status == http.StatusNotFound {
				fe.Err = media.ErrNotFound
			}
		}
		return nil, fe
	}
	return env.Data, nil
}

func toSummary(m mediaItem, overviewRunes int) media.Summary {
	s := media.Summary{
		Provider:   media.KindAnime,
		ExternalID: strconv.FormatInt(m.ID, 10),
		Title:      pickTitle(m.Title),
		ImageURL:   pickImage(m.CoverImage, m.BannerImage),
		Year:       m.StartDate.Year,
		Overview:   truncateRunes(StripTags(m.Description), overviewRunes),
	}
	if m.AverageScore != nil {
		s.Score = media.NormalizeScore(float64(*m.AverageScore) / 10)
	}
	return s
}

func pickTitle(t title) string {
	for _, v := range []string{t.English, t.Romaji, t.Native} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return "Untitled"
}

func pickImage(ci coverImage, banner string) *string {
	for _, v := range []string{ci.ExtraLarge, ci.Large, ci.Medium, banner} {
		if p := media.StringPtr(v); p != nil {
			return p
		}
	}
	return nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags removes markup tags. Entities such as &amp; are left as is.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// URL is the public AniList page of an anime.
func URL(id string) string {
	return "https://anilist.co/anime/" + id
}

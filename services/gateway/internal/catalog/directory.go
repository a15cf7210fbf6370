// Package catalog maps browse selectors (scope + category) onto the
// provider adapters and caches the pages they return.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/anilist"
	"github.com/example/media-platform/services/gateway/internal/cache"
	"github.com/example/media-platform/services/gateway/internal/grid"
	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/tmdb"
)

var ErrUnknownSelector = errors.New("unknown catalog selector")

// TitleLister is the movie/TV list surface.
type TitleLister interface {
	FetchCategoryPage(ctx context.Context, cat tmdb.Category, page int) (media.Page, error)
}

// AnimeLister is the anime list surface.
type AnimeLister interface {
	FetchPage(ctx context.Context, q anilist.PageQuery) (media.Page, error)
}

var titleCategories = map[media.Kind]map[string]string{
	media.KindMovie: {
		"popular":     "movie/popular",
		"top_rated":   "movie/top_rated",
		"now_playing": "movie/now_playing",
		"upcoming":    "movie/upcoming",
		"trending":    "trending/movie/week",
	},
	media.KindTV: {
		"popular":      "tv/popular",
		"top_rated":    "tv/top_rated",
		"airing_today": "tv/airing_today",
		"on_the_air":   "tv/on_the_air",
		"trending":     "trending/tv/week",
	},
}

var animeCategories = map[string]string{
	"trending":  anilist.SortTrending,
	"popular":   anilist.SortPopularity,
	"top_rated": anilist.SortScore,
}

// Categories lists the browsable categories per scope, sorted by name.
func Categories() map[string][]string {
	out := map[string][]string{}
	for kind, cats := range titleCategories {
		for name := range cats {
			out[string(kind)] = append(out[string(kind)], name)
		}
	}
	for name := range animeCategories {
		out[string(media.KindAnime)] = append(out[string(media.KindAnime)], name)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

type Directory struct {
	titles       TitleLister
	anime        AnimeLister
	cache        cache.Cache
	animePerPage int
	log          *zap.Logger
}

// NewDirectory wires the adapters. c may be nil to disable caching.
func NewDirectory(titles TitleLister, anime AnimeLister, c cache.Cache, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{titles: titles, anime: anime, cache: c, animePerPage: anilist.DefaultPerPage, log: log}
}

// Fetcher implements grid.Resolver.
func (d *Directory) Fetcher(sel grid.Selector) (grid.Fetcher, error) {
	load, err := d.loader(sel)
	if err != nil {
		return nil, err
	}
	return fetcherFunc(func(ctx context.Context, page int) (media.Page, error) {
		return d.cached(ctx, sel, page, load)
	}), nil
}

// Page loads a single page of a selector through the cache.
func (d *Directory) Page(ctx context.Context, sel grid.Selector, page int) (media.Page, error) {
	f, err := d.Fetcher(sel)
	if err != nil {
		return media.Page{}, err
	}
	return f.FetchPage(ctx, page)
}

type loadFunc func(ctx context.Context, page int) (media.Page, error)

type fetcherFunc loadFunc

func (f fetcherFunc) FetchPage(ctx context.Context, page int) (media.Page, error) {
	return f(ctx, page)
}

func (d *Directory) loader(sel grid.Selector) (loadFunc, error) {
	kind, err := media.ParseKind(sel.Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSelector, err)
	}
	if kind == media.KindAnime {
		sortKey, ok := animeCategories[sel.Category]
		if !ok || d.anime == nil {
			return nil, fmt.Errorf("%w: anime/%s", ErrUnknownSelector, sel.Category)
		}
		return func(ctx context.Context, page int) (media.Page, error) {
			return d.anime.FetchPage(ctx, anilist.PageQuery{
				Page:     page,
				PerPage:  d.animePerPage,
				Sort:     []string{sortKey},
				Released: true,
			})
		}, nil
	}
	endpoint, ok := titleCategories[kind][sel.Category]
	if !ok || d.titles == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSelector, kind, sel.Category)
	}
	cat := tmdb.Category{Kind: kind, Endpoint: endpoint}
	return func(ctx context.Context, page int) (media.Page, error) {
		return d.titles.FetchCategoryPage(ctx, cat, page)
	}, nil
}

func cacheKey(sel grid.Selector, page int) string {
	return "catalog:" + sel.Scope + ":" + sel.Category + ":" + strconv.Itoa(page)
}

// cached serves successful pages from the cache. Cache failures degrade to
// a direct fetch; failed fetches are never cached.
func (d *Directory) cached(ctx context.Context, sel grid.Selector, page int, load loadFunc) (media.Page, error) {
	if d.cache == nil {
		return load(ctx, page)
	}
	key := cacheKey(sel, page)
	var hit media.Page
	if ok, err := d.cache.Get(ctx, key, &hit); err != nil {
		d.log.Warn("catalog cache get", zap.String("key", key), zap.Error(err))
	} else if ok {
		if hit.Items == nil {
			hit.Items = []media.Summary{}
		}
		return hit, nil
	}
	p, err := load(ctx, page)
	if err != nil {
		return media.Page{}, err
	}
	if err := d.cache.Set(ctx, key, p); err != nil {
		d.log.Warn("catalog cache set", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

// Package search turns a free-text query into a de-duplicated list of
// summaries, and debounces type-ahead queries.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/tmdb"
)

// Scope restricts which catalog a query runs against.
type Scope string

const (
	ScopeMovie Scope = "movie"
	ScopeTV    Scope = "tv"
	ScopeMulti Scope = "multi"
	ScopeAnime Scope = "anime"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeMulti, nil
	case ScopeMovie, ScopeTV, ScopeMulti, ScopeAnime:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown search scope %q", s)
	}
}

// TitleSearcher is the movie/TV search surface.
type TitleSearcher interface {
	SearchPage(ctx context.Context, query string, scope tmdb.Scope, page int) (media.Page, error)
}

// AnimeSearcher is the anime search surface.
type AnimeSearcher interface {
	Search(ctx context.Context, query string, page, perPage int) (media.Page, error)
}

// Searcher is what the HTTP and live layers depend on.
type Searcher interface {
	Search(ctx context.Context, query string, scope Scope) ([]media.Summary, error)
}

type Aggregator struct {
	titles TitleSearcher
	anime  AnimeSearcher
	log    *zap.Logger
}

func NewAggregator(titles TitleSearcher, anime AnimeSearcher, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{titles: titles, anime: anime, log: log}
}

// Search returns the first page of matches in upstream relevance order.
// A blank query returns an empty list without touching the network.
func (a *Aggregator) Search(ctx context.Context, query string, scope Scope) ([]media.Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []media.Summary{}, nil
	}

	var (
		page media.Page
		err  error
	)
	switch scope {
	case ScopeMovie:
		page, err = a.titles.SearchPage(ctx, query, tmdb.ScopeMovie, 1)
	case ScopeTV:
		page, err = a.titles.SearchPage(ctx, query, tmdb.ScopeTV, 1)
	case ScopeMulti, "":
		page, err = a.titles.SearchPage(ctx, query, tmdb.ScopeMulti, 1)
	case ScopeAnime:
		if a.anime == nil {
			return nil, fmt.Errorf("anime search is not configured")
		}
		page, err = a.anime.Search(ctx, query, 1, 0)
	default:
		return nil, fmt.Errorf("unknown search scope %q", scope)
	}
	if err != nil {
		a.log.Warn("search failed", zap.String("scope", string(scope)), zap.Error(err))
		return nil, err
	}
	return Dedupe(page.Items), nil
}

// Dedupe keeps the first occurrence of each (kind, id) pair.
func Dedupe(items []media.Summary) []media.Summary {
	seen := make(map[media.Key]struct{}, len(items))
	out := make([]media.Summary, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Key()]; ok {
			continue
		}
		seen[it.Key()] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Package grid drives infinite-scroll browsing of one catalog list.
package grid

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/media"
)

// Status is the lifecycle state of a grid.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusLoading     Status = "loading"
	StatusLoadingMore Status = "loading_more"
	StatusError       Status = "error"
	StatusExhausted   Status = "exhausted"
)

// ErrorMessage is shown when a page fails to load.
const ErrorMessage = "Something went wrong. Try refreshing."

// Selector names the list a grid is browsing, e.g. {movie, popular}.
type Selector struct {
	Scope    string `json:"scope"`
	Category string `json:"category"`
}

// Cursor tracks pagination. PageNumber is the last page loaded (1 before
// the first load) and only advances after a non-empty page.
type Cursor struct {
	PageNumber int  `json:"page_number"`
	HasMore    bool `json:"has_more"`
}

// State is a point-in-time snapshot of a grid.
type State struct {
	Selector Selector        `json:"selector"`
	Items    []media.Summary `json:"items"`
	Cursor   Cursor          `json:"cursor"`
	Status   Status          `json:"status"`
	Message  string          `json:"message,omitempty"`
}

// Fetcher loads one page of a selected list.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (media.Page, error)
}

// Resolver maps a selector to its fetcher.
type Resolver interface {
	Fetcher(sel Selector) (Fetcher, error)
}

// Controller serializes all state changes of one grid. Fetches run outside
// the lock and are tagged with the token of the Start that issued them;
// responses carrying an older token are dropped.
type Controller struct {
	resolver Resolver
	log      *zap.Logger

	mu      sync.Mutex
	token   uint64
	fetcher Fetcher
	state   State
}

func NewController(resolver Resolver, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		resolver: resolver,
		log:      log,
		state:    State{Items: []media.Summary{}, Cursor: Cursor{PageNumber: 1}, Status: StatusIdle},
	}
}

// Start resets the grid to sel and loads its first page. Any in-flight
// load for a previous selector becomes stale. An unknown selector is
// returned as an error and leaves the grid untouched.
func (c *Controller) Start(ctx context.Context, sel Selector) error {
	f, err := c.resolver.Fetcher(sel)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token++
	token := c.token
	c.fetcher = f
	c.state = State{
		Selector: sel,
		Items:    []media.Summary{},
		Cursor:   Cursor{PageNumber: 1, HasMore: true},
		Status:   StatusLoading,
	}
	c.mu.Unlock()

	c.load(ctx, token, f, 1)
	return nil
}

// LoadNextIfNeeded fetches the next page when the grid is idle and more
// pages exist. It reports whether a fetch was issued.
func (c *Controller) LoadNextIfNeeded(ctx context.Context) bool {
	c.mu.Lock()
	if c.state.Status != StatusIdle || !c.state.Cursor.HasMore || c.fetcher == nil {
		c.mu.Unlock()
		return false
	}
	c.state.Status = StatusLoadingMore
	token, f, next := c.token, c.fetcher, c.state.Cursor.PageNumber+1
	c.mu.Unlock()

	c.load(ctx, token, f, next)
	return true
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Items = append(make([]media.Summary, 0, len(c.state.Items)), c.state.Items...)
	return s
}

func (c *Controller) load(ctx context.Context, token uint64, f Fetcher, pageNumber int) {
	page, err := f.FetchPage(ctx, pageNumber)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		c.log.Debug("discarding stale grid page", zap.Int("page", pageNumber), zap.Uint64("token", token))
		return
	}
	if err != nil {
		c.log.Warn("grid page failed",
			zap.String("scope", c.state.Selector.Scope),
			zap.String("category", c.state.Selector.Category),
			zap.Int("page", pageNumber),
			zap.Error(err))
		c.state.Status = StatusError
		c.state.Message = ErrorMessage
		return
	}
	if len(page.Items) == 0 {
		c.state.Cursor.HasMore = false
		c.state.Status = StatusExhausted
		return
	}
	c.state.Items = append(c.state.Items, page.Items...)
	c.state.Cursor.PageNumber = pageNumber
	c.state.Cursor.HasMore = c.state.Cursor.HasMore && page.HasMore
	c.state.Message = ""
	if c.state.Cursor.HasMore {
		c.state.Status = StatusIdle
	} else {
		c.state.Status = StatusExhausted
	}
}

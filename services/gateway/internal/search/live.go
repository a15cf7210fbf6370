package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/media"
)

// DefaultQuietPeriod is how long typing must pause before a query is sent.
const DefaultQuietPeriod = 300 * time.Millisecond

// Result is one delivered outcome of a scheduled query.
type Result struct {
	Token uint64
	Query string
	Scope Scope
	Items []media.Summary
	Err   error
}

// Live debounces type-ahead queries for one client. Every Schedule call
// issues a new token; a result is delivered only while its token is the
// latest issued one and newer than the last delivered one.
type Live struct {
	searcher Searcher
	quiet    time.Duration
	deliver  func(Result)
	log      *zap.Logger

	// deliverMu serializes deliveries so they reach the client in token order.
	deliverMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	issued  uint64
	applied uint64
	closed  bool
}

func NewLive(searcher Searcher, quiet time.Duration, deliver func(Result), log *zap.Logger) *Live {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Live{searcher: searcher, quiet: quiet, deliver: deliver, log: log}
}

// Schedule supersedes any pending or in-flight query. A blank query is
// delivered immediately as an empty result. It returns the issued token.
func (l *Live) Schedule(ctx context.Context, query string, scope Scope) uint64 {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	l.stopLocked()
	l.issued++
	token := l.issued

	if strings.TrimSpace(query) == "" {
		l.mu.Unlock()
		l.apply(Result{Token: token, Query: query, Scope: scope, Items: []media.Summary{}})
		return token
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.timer = time.AfterFunc(l.quiet, func() {
		items, err := l.searcher.Search(runCtx, query, scope)
		l.apply(Result{Token: token, Query: query, Scope: scope, Items: items, Err: err})
	})
	l.mu.Unlock()
	return token
}

// Latest returns the most recently issued token.
func (l *Live) Latest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.issued
}

// Close drops pending work; later results are discarded.
func (l *Live) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.stopLocked()
}

func (l *Live) stopLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// apply must not be reached from inside deliver.
func (l *Live) apply(res Result) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	stale := l.closed || res.Token != l.issued || res.Token <= l.applied
	if !stale {
		l.applied = res.Token
	}
	l.mu.Unlock()

	if stale {
		l.log.Debug("discarding stale search result", zap.Uint64("token", res.Token))
		return
	}
	l.deliver(res)
}

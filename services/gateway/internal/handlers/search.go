package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/search"
)

type searchResponse struct {
	Query   string          `json:"query"`
	Scope   search.Scope    `json:"scope"`
	Results []media.Summary `json:"results"`
}

// Search handles GET /v1/search?q=&scope=
func Search(s search.Searcher, ap *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		scope, err := search.ParseScope(r.URL.Query().Get("scope"))
		if err != nil {
			api.BadRequest(w, "INVALID_SCOPE", err.Error(), rid, nil)
			return
		}

		items, err := s.Search(r.Context(), q, scope)
		if err != nil {
			writeFetchError(w, rid, "SEARCH_FAILED", err)
			return
		}

		if q != "" {
			uid, _ := auth.UserIDFromContext(r.Context())
			ap.Publish(analytics.SubjectSearchPerformed, "search_performed", uid, map[string]any{
				"query":   q,
				"scope":   string(scope),
				"results": len(items),
			})
		}
		api.WriteJSON(w, http.StatusOK, searchResponse{Query: q, Scope: scope, Results: items})
	}
}

const (
	livePongWait   = 60 * time.Second
	livePingPeriod = 25 * time.Second
	liveWriteWait  = 10 * time.Second
)

type liveRequest struct {
	Query string `json:"query"`
	Scope string `json:"scope"`
}

type liveMessage struct {
	Token   uint64          `json:"token"`
	Query   string          `json:"query"`
	Scope   search.Scope    `json:"scope"`
	Results []media.Summary `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// liveConn serializes writes; gorilla connections allow one writer.
type liveConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *liveConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return c.ws.WriteJSON(v)
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

// LiveSearch handles GET /v1/search/live. Each text frame {query, scope}
// schedules a debounced search; only the newest query's result is sent.
// An empty allowedOrigins list accepts any origin.
func LiveSearch(s search.Searcher, quiet time.Duration, allowedOrigins []string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("live search upgrade failed", zap.String("request_id", rid), zap.Error(err))
			return
		}
		conn := &liveConn{ws: ws}
		ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
		defer cancel()

		live := search.NewLive(s, quiet, func(res search.Result) {
			msg := liveMessage{Token: res.Token, Query: res.Query, Scope: res.Scope, Results: res.Items}
			if res.Err != nil {
				msg.Results = nil
				msg.Error = "Search failed. Please try again."
			} else if msg.Results == nil {
				msg.Results = []media.Summary{}
			}
			if err := conn.writeJSON(msg); err != nil {
				log.Debug("live search write failed", zap.String("request_id", rid), zap.Error(err))
			}
		}, log)

		ws.SetReadLimit(4096)
		_ = ws.SetReadDeadline(time.Now().Add(livePongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(livePongWait))
		})

		go func() {
			t := time.NewTicker(livePingPeriod)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := conn.ping(); err != nil {
						return
					}
				}
			}
		}()

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				break
			}
			_ = ws.SetReadDeadline(time.Now().Add(livePongWait))

			var req liveRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				// plain text frames are treated as a multi-scope query
				req = liveRequest{Query: string(payload)}
			}
			scope, err := search.ParseScope(req.Scope)
			if err != nil {
				_ = conn.writeJSON(liveMessage{Query: req.Query, Error: err.Error()})
				continue
			}
			live.Schedule(ctx, req.Query, scope)
		}

		cancel()
		live.Close()
		_ = ws.Close()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := map[string]struct{}{}
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

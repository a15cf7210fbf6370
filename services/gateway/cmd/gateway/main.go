package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/config"
	"github.com/example/media-platform/internal/platform/db"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/logging"
	"github.com/example/media-platform/internal/platform/natsconn"
	"github.com/example/media-platform/internal/platform/ratelimit"
	"github.com/example/media-platform/internal/platform/run"
	"github.com/example/media-platform/services/gateway/internal/anilist"
	"github.com/example/media-platform/services/gateway/internal/cache"
	"github.com/example/media-platform/services/gateway/internal/catalog"
	gwconfig "github.com/example/media-platform/services/gateway/internal/config"
	"github.com/example/media-platform/services/gateway/internal/grid"
	"github.com/example/media-platform/services/gateway/internal/grpcapi"
	"github.com/example/media-platform/services/gateway/internal/handlers"
	gwhttp "github.com/example/media-platform/services/gateway/internal/http"
	"github.com/example/media-platform/services/gateway/internal/playback"
	"github.com/example/media-platform/services/gateway/internal/progress"
	"github.com/example/media-platform/services/gateway/internal/search"
	"github.com/example/media-platform/services/gateway/internal/session"
	"github.com/example/media-platform/services/gateway/internal/tmdb"
	"github.com/example/media-platform/services/gateway/internal/upstream"
	"github.com/example/media-platform/services/gateway/internal/worker"
)

const analyticsStream = "ANALYTICS"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	gwCfg, err := gwconfig.LoadGateway()
	if err != nil {
		log.Error("load gateway config", zap.Error(err))
		run.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	// NATS is optional: without it analytics are dropped, invalidation
	// stays local and progress writes run inline.
	var (
		nc *nats.Conn
		js nats.JetStreamContext
	)
	if gwCfg.NATSURL != "" {
		nc, err = natsconn.Connect(natsconn.Options{URL: gwCfg.NATSURL, Name: cfg.ServiceName})
		if err != nil {
			log.Warn("nats unavailable, continuing without events", zap.Error(err))
		} else {
			defer nc.Close()
			if js, err = nc.JetStream(); err != nil {
				log.Warn("jetstream unavailable", zap.Error(err))
				js = nil
			} else if err := natsconn.EnsureStream(js, analyticsStream, "analytics.>"); err != nil {
				log.Warn("ensure analytics stream", zap.Error(err))
			}
		}
	}
	ap := analytics.New(js, log)

	// Redis backs both the shared page cache and watch progress.
	var (
		rdb       *redis.Client
		pageCache cache.Cache
		ttlCache  *cache.TTLCache
	)
	if gwCfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(gwCfg.RedisURL, gwCfg.CacheTTL, "")
		if err != nil {
			log.Error("redis url", zap.Error(err))
			run.Exit(1)
		}
		if err := rc.Ping(startCtx); err != nil {
			log.Warn("redis unavailable, using in-process cache", zap.Error(err))
			_ = rc.Close()
		} else {
			defer func() { _ = rc.Close() }()
			rdb = rc.Client
			pageCache = rc
		}
	}
	if pageCache == nil {
		ttlCache = cache.NewTTLCache(gwCfg.CacheTTL)
		defer func() { _ = ttlCache.Close() }()
		if err := ttlCache.SubscribeInvalidation(nc, gwCfg.CacheInvalidateSubject, log); err != nil {
			log.Warn("cache invalidation subscribe", zap.Error(err))
		}
		pageCache = ttlCache
	}

	var pool *pgxpool.Pool
	if gwCfg.DatabaseURL != "" {
		pool, err = db.Open(startCtx, gwCfg.DatabaseURL)
		if err != nil {
			log.Error("open database", zap.Error(err))
			run.Exit(1)
		}
		defer pool.Close()
	}

	kv, err := progress.NewKV(startCtx, progress.Backends{Redis: rdb, Postgres: pool, IsProduction: cfg.IsProduction()})
	if err != nil {
		log.Error("progress store", zap.Error(err))
		run.Exit(1)
	}
	progressStore := progress.NewStore(kv, log)

	// Upstream adapters
	titles := tmdb.New(tmdb.Config{
		BaseURL:      gwCfg.TMDBBaseURL,
		ImageBaseURL: gwCfg.TMDBImageBaseURL,
		Token:        gwCfg.TMDBToken,
		Timeout:      gwCfg.UpstreamTimeout,
	},
		tmdb.WithCircuitBreaker(upstream.NewBreaker("tmdb", gwCfg.Breaker, log)),
		tmdb.WithLogger(log),
	)
	limiter := ratelimit.NewRPS(gwCfg.AniListRPS)
	defer limiter.Stop()
	anime := anilist.New(gwCfg.AniListURL, gwCfg.UpstreamTimeout,
		anilist.WithCircuitBreaker(upstream.NewBreaker("anilist", gwCfg.Breaker, log)),
		anilist.WithLimiter(limiter),
		anilist.WithLogger(log),
	)

	directory := catalog.NewDirectory(titles, anime, pageCache, log)
	grids := grid.NewRegistry(directory, gwCfg.GridTTL, gwCfg.GridMax, log)
	aggregator := search.NewAggregator(titles, anime, log)

	sources := playback.DefaultSources()
	if gwCfg.SourcesFile != "" {
		sources, err = playback.LoadSourcesFile(gwCfg.SourcesFile)
		if err != nil {
			log.Error("load sources file", zap.String("path", gwCfg.SourcesFile), zap.Error(err))
			run.Exit(1)
		}
	}
	resolver, err := playback.NewResolver(sources)
	if err != nil {
		log.Error("playback resolver", zap.Error(err))
		run.Exit(1)
	}

	asyncProgress := gwCfg.AsyncProgressWrites && js != nil
	if asyncProgress {
		if err := natsconn.EnsureStream(js, worker.StreamName, handlers.SubjectProgressMessages); err != nil {
			log.Warn("progress stream unavailable, writing inline", zap.Error(err))
			asyncProgress = false
		}
	}
	events := handlers.NewEventPublisher(js, asyncProgress)

	verifier := auth.JWTVerifier{Secret: gwCfg.JWTSecret}
	var sessions *session.Manager
	if gwCfg.AuthBackendURL != "" {
		sessions = session.NewManager(
			session.NewHTTPBackend(gwCfg.AuthBackendURL, gwCfg.UpstreamTimeout, log),
			auth.JWTSigner{Secret: gwCfg.JWTSecret, Issuer: cfg.ServiceName, TTL: gwCfg.AccessTokenTTL},
			log,
			session.WithAdmins(gwCfg.Admins...),
		)
	} else {
		log.Warn("AUTH_BACKEND_URL not set, auth routes disabled")
	}

	ready := func() error {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return err
			}
		}
		if pool != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				return err
			}
		}
		if nc != nil && !nc.IsConnected() {
			return errors.New("nats disconnected")
		}
		return nil
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ready, Logger: log})

	limit := gwhttp.NewRateLimiter(gwCfg.RateLimitRPS, gwCfg.RateLimitBurst)

	r.Route("/v1", func(r chi.Router) {
		r.Use(limit.Middleware)

		r.Get("/catalog", handlers.ListCategories())
		r.Get("/catalog/{scope}/{category}", handlers.CatalogPage(directory, ap))

		r.Get("/titles/{kind}/{id}", handlers.GetTitle(titles, anime))
		r.Get("/titles/tv/{id}/seasons/{season}", handlers.GetSeason(titles))

		r.Post("/grids", handlers.CreateGrid(grids, ap))
		r.Post("/grids/{grid_id}/next", handlers.NextGridPage(grids, ap))
		r.Get("/grids/{grid_id}", handlers.GetGrid(grids))

		r.Get("/search", handlers.Search(aggregator, ap))
		r.Get("/search/live", handlers.LiveSearch(aggregator, gwCfg.SearchDebounce, allowedOrigins(), log))

		r.Get("/playback/sources", handlers.ListSources(resolver))
		r.Get("/playback/next", handlers.NextSource(resolver, ap))
		r.Get("/playback/{kind}/{id}", handlers.ResolvePlayback(resolver, progressStore, ap))

		r.Post("/progress/messages", handlers.PlayerMessage(progressStore, events, log))
		r.Get("/progress/{media_id}", handlers.GetProgress(progressStore))
		r.Put("/progress/{media_id}", handlers.PutProgress(progressStore))

		if sessions != nil {
			r.Post("/auth/signup", handlers.Signup(sessions, ap, log))
			r.Post("/auth/login", handlers.Login(sessions, ap, log))
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireUser(verifier))
				r.Post("/auth/refresh", handlers.Refresh(sessions, log))
				r.Post("/auth/logout", handlers.Logout(sessions, log))
				r.Get("/me", handlers.Me(sessions))
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(verifier))
			r.Use(auth.RequireAdmin)
			var bus handlers.Broadcaster
			if nc != nil && ttlCache != nil {
				bus = nc
			}
			r.Post("/admin/cache/invalidate", handlers.InvalidateCache(pageCache, bus, gwCfg.CacheInvalidateSubject, log))
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	health := grpcapi.NewServer(log)
	runner := run.New(log)

	components := []run.Component{
		func(ctx context.Context) error {
			go func() {
				<-ctx.Done()
				health.SetServing(false)
				runner.Graceful(srv.Shutdown)
			}()
			health.SetServing(true)
			return srv.Start(log)
		},
		func(ctx context.Context) error {
			return health.Serve(ctx, gwCfg.GRPCAddr)
		},
		func(ctx context.Context) error {
			// Drops idle sessions.
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if sessions != nil {
						sessions.Sweep()
					}
					log.Debug("housekeeping", zap.Int("grids", grids.Len()), zap.Int("sessions", sessionCount(sessions)))
				}
			}
		},
	}
	if asyncProgress {
		consumer := worker.NewProgressConsumer(log, js, handlers.SubjectProgressMessages, progressStore)
		components = append(components, consumer.Run)
	}

	code := runner.WithSignals(components...)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

func allowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func sessionCount(m *session.Manager) int {
	if m == nil {
		return 0
	}
	return m.Len()
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/media-platform/services/gateway/internal/anilist"
	"github.com/example/media-platform/services/gateway/internal/search"
	"github.com/example/media-platform/services/gateway/internal/tmdb"
	"github.com/example/media-platform/services/gateway/internal/upstream"
)

type GatewayConfig struct {
	TMDBToken        string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	AniListURL       string
	AniListRPS       float64
	UpstreamTimeout  time.Duration
	SearchDebounce   time.Duration

	AuthBackendURL string
	JWTSecret      []byte
	AccessTokenTTL time.Duration
	Admins         []string

	RedisURL    string
	DatabaseURL string
	NATSURL     string

	CacheTTL               time.Duration
	CacheInvalidateSubject string
	AsyncProgressWrites    bool

	SourcesFile string
	GRPCAddr    string
	GridTTL     time.Duration
	GridMax     int

	RateLimitRPS   float64
	RateLimitBurst int
	Breaker        upstream.BreakerConfig
}

func LoadGateway() (GatewayConfig, error) {
	token := strings.TrimSpace(os.Getenv("TMDB_API_TOKEN"))
	if token == "" {
		return GatewayConfig{}, errors.New("TMDB_API_TOKEN is required")
	}
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return GatewayConfig{}, errors.New("JWT_SECRET is required")
	}

	cfg := GatewayConfig{
		TMDBToken:        token,
		TMDBBaseURL:      envString("TMDB_BASE_URL", tmdb.DefaultBaseURL),
		TMDBImageBaseURL: envString("TMDB_IMAGE_BASE_URL", tmdb.DefaultImageBaseURL),
		AniListURL:       envString("ANILIST_URL", anilist.DefaultEndpoint),
		AniListRPS:       envFloat("ANILIST_RPS", 1.5),
		UpstreamTimeout:  envDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		SearchDebounce:   envDuration("SEARCH_DEBOUNCE", search.DefaultQuietPeriod),

		AuthBackendURL: strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_BACKEND_URL")), "/"),
		JWTSecret:      []byte(secret),
		AccessTokenTTL: envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		Admins:         envList("ADMIN_USERNAMES"),

		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NATSURL:     strings.TrimSpace(os.Getenv("NATS_URL")),

		CacheTTL:               envDuration("CACHE_TTL", 10*time.Minute),
		CacheInvalidateSubject: envString("CACHE_INVALIDATE_SUBJECT", "gateway.cache.invalidate"),
		AsyncProgressWrites:    envBool("ASYNC_PROGRESS_WRITES", false),

		SourcesFile: strings.TrimSpace(os.Getenv("SOURCES_FILE")),
		GRPCAddr:    envString("GRPC_ADDR", ":9090"),
		GridTTL:     envDuration("GRID_TTL", 30*time.Minute),
		GridMax:     envInt("GRID_MAX", 1000),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 40),
		Breaker: upstream.BreakerConfig{
			MaxRequests:      uint32(envInt("CB_MAX_REQUESTS", 1)),
			Interval:         envDuration("CB_INTERVAL", time.Minute),
			Timeout:          envDuration("CB_TIMEOUT", 30*time.Second),
			FailureThreshold: uint32(envInt("CB_FAILURE_THRESHOLD", 5)),
		},
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

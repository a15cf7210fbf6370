package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/logging"
	"github.com/example/media-platform/internal/platform/ratelimit"
	"github.com/example/media-platform/services/gateway/internal/anilist"
	"github.com/example/media-platform/services/gateway/internal/playback"
	"github.com/example/media-platform/services/gateway/internal/tmdb"
)

type cli struct {
	tmdbURL     string
	anilistURL  string
	anilistRPS  float64
	timeout     time.Duration
	sourcesFile string
	logLevel    string
	asJSON      bool

	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "mediactl",
		Short:        "Browse, search and resolve playback from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New(c.logLevel)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			c.log = log
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.tmdbURL, "tmdb-url", envOr("TMDB_BASE_URL", tmdb.DefaultBaseURL), "TMDB API base URL")
	f.StringVar(&c.anilistURL, "anilist-url", envOr("ANILIST_URL", anilist.DefaultEndpoint), "AniList GraphQL endpoint")
	f.Float64Var(&c.anilistRPS, "anilist-rps", 1.5, "AniList requests per second")
	f.DurationVar(&c.timeout, "timeout", 10*time.Second, "Upstream request timeout")
	f.StringVar(&c.sourcesFile, "sources-file", os.Getenv("SOURCES_FILE"), "TOML file replacing the built-in playback sources")
	f.StringVar(&c.logLevel, "log-level", "error", "Log level: debug | info | warn | error")
	f.BoolVarP(&c.asJSON, "json", "j", false, "Print JSON instead of text")

	root.AddCommand(
		newSearchCmd(c),
		newBrowseCmd(c),
		newDetailCmd(c),
		newSourcesCmd(c),
		newPlayCmd(c),
	)
	return root
}

func (c *cli) titles() (*tmdb.Client, error) {
	token := strings.TrimSpace(os.Getenv("TMDB_API_TOKEN"))
	if token == "" {
		return nil, errors.New("TMDB_API_TOKEN is required")
	}
	return tmdb.New(tmdb.Config{BaseURL: c.tmdbURL, Token: token, Timeout: c.timeout}, tmdb.WithLogger(c.log)), nil
}

// anime returns the AniList client and a stop func for its limiter.
func (c *cli) anime() (*anilist.Client, func()) {
	limiter := ratelimit.NewRPS(c.anilistRPS)
	client := anilist.New(c.anilistURL, c.timeout, anilist.WithLimiter(limiter), anilist.WithLogger(c.log))
	return client, limiter.Stop
}

func (c *cli) resolver() (*playback.Resolver, error) {
	sources := playback.DefaultSources()
	if c.sourcesFile != "" {
		var err error
		if sources, err = playback.LoadSourcesFile(c.sourcesFile); err != nil {
			return nil, err
		}
	}
	return playback.NewResolver(sources)
}

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

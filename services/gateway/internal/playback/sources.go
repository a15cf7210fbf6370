// Package playback turns a title (and episode) into an embeddable player
// URL from an ordered list of third-party sources.
package playback

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Source is one embed provider. URL templates use {id}, {season} and
// {episode} placeholders.
type Source struct {
	Name        string `toml:"name"`
	MovieURL    string `toml:"movie_url"`
	EpisodeURL  string `toml:"episode_url"`
	SandboxSafe bool   `toml:"sandbox_safe"`
	HasAds      bool   `toml:"has_ads"`
	// ResumeParam is the query parameter carrying a start offset in
	// seconds. Empty when the source cannot resume.
	ResumeParam string `toml:"resume_param"`
}

// DefaultSources is the built-in order; the first entry is tried first.
func DefaultSources() []Source {
	return []Source{
		{
			Name:        "vidsrc.cc",
			MovieURL:    "https://vidsrc.cc/v2/embed/movie/{id}",
			EpisodeURL:  "https://vidsrc.cc/v2/embed/tv/{id}/{season}/{episode}",
			SandboxSafe: true,
		},
		{
			Name:        "videasy",
			MovieURL:    "https://player.videasy.net/movie/{id}",
			EpisodeURL:  "https://player.videasy.net/tv/{id}/{season}/{episode}",
			HasAds:      true,
			ResumeParam: "progress",
		},
		{
			Name:       "vidsrc.to",
			MovieURL:   "https://vidsrc.to/embed/movie/{id}",
			EpisodeURL: "https://vidsrc.to/embed/tv/{id}/{season}/{episode}",
			HasAds:     true,
		},
		{
			Name:       "vidsrc.su",
			MovieURL:   "https://vidsrc.su/movie/{id}",
			EpisodeURL: "https://vidsrc.su/tv/{id}/{season}/{episode}",
			HasAds:     true,
		},
	}
}

// BuildMovieURL fills the movie template.
func (s Source) BuildMovieURL(id string) string {
	return strings.NewReplacer("{id}", url.PathEscape(id)).Replace(s.MovieURL)
}

// BuildEpisodeURL fills the episode template.
func (s Source) BuildEpisodeURL(id string, season, episode int) string {
	return strings.NewReplacer(
		"{id}", url.PathEscape(id),
		"{season}", strconv.Itoa(season),
		"{episode}", strconv.Itoa(episode),
	).Replace(s.EpisodeURL)
}

func (s Source) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("source name is required")
	}
	for _, tpl := range []string{s.MovieURL, s.EpisodeURL} {
		if !strings.Contains(tpl, "{id}") {
			return fmt.Errorf("source %s: url %q has no {id} placeholder", s.Name, tpl)
		}
		u, err := url.Parse(strings.NewReplacer("{id}", "x", "{season}", "1", "{episode}", "1").Replace(tpl))
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("source %s: url %q must be an absolute https url", s.Name, tpl)
		}
	}
	if !strings.Contains(s.EpisodeURL, "{season}") || !strings.Contains(s.EpisodeURL, "{episode}") {
		return fmt.Errorf("source %s: episode url needs {season} and {episode}", s.Name)
	}
	return nil
}

type sourcesFile struct {
	Sources []Source `toml:"source"`
}

// LoadSourcesFile reads an ordered [[source]] list from a TOML file.
func LoadSourcesFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a TOML source list.
func ParseSources(data []byte) ([]Source, error) {
	var f sourcesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, errors.New("sources file lists no [[source]] entries")
	}
	for _, s := range f.Sources {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}
	return f.Sources, nil
}

package playback

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newDefault(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(DefaultSources())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

// ─── Resolve ───

func TestResolve_MovieFirstSource(t *testing.T) {
	r := newDefault(t)
	e := r.Resolve(Request{Kind: KindMovie, MediaID: "603", SourceIndex: 0})

	if e.URL != "https://vidsrc.cc/v2/embed/movie/603" {
		t.Fatalf("unexpected url: %s", e.URL)
	}
	if e.SourceName != "vidsrc.cc" || !e.SandboxSafe || e.HasAds {
		t.Fatalf("unexpected source flags: %+v", e)
	}
	if e.TotalSources != 4 {
		t.Fatalf("expected 4 sources, got %d", e.TotalSources)
	}
}

func TestResolve_Episode(t *testing.T) {
	r := newDefault(t)
	e := r.Resolve(Request{Kind: KindTVEpisode, MediaID: "1399", Season: 2, Episode: 5, SourceIndex: 2})

	if e.URL != "https://vidsrc.to/embed/tv/1399/2/5" {
		t.Fatalf("unexpected url: %s", e.URL)
	}
	if e.SourceIndex != 2 || !e.HasAds {
		t.Fatalf("unexpected embed: %+v", e)
	}
}

func TestResolve_EpisodeDefaultsToOne(t *testing.T) {
	r := newDefault(t)
	e := r.Resolve(Request{Kind: KindTVEpisode, MediaID: "1399", SourceIndex: 3})

	if e.URL != "https://vidsrc.su/tv/1399/1/1" {
		t.Fatalf("unexpected url: %s", e.URL)
	}
}

func TestResolve_OutOfRangeFallsBackToFirst(t *testing.T) {
	r := newDefault(t)
	for _, idx := range []int{-1, 4, 99} {
		e := r.Resolve(Request{Kind: KindMovie, MediaID: "1", SourceIndex: idx})
		if e.SourceIndex != 0 || e.SourceName != "vidsrc.cc" {
			t.Fatalf("index %d: expected fallback to 0, got %+v", idx, e)
		}
	}
}

func TestResolve_ResumeOnlyWhereSupported(t *testing.T) {
	r := newDefault(t)
	at := 754

	e := r.Resolve(Request{Kind: KindMovie, MediaID: "603", SourceIndex: 1, ResumeAt: &at})
	if e.URL != "https://player.videasy.net/movie/603?progress=754" {
		t.Fatalf("unexpected url: %s", e.URL)
	}

	e = r.Resolve(Request{Kind: KindMovie, MediaID: "603", SourceIndex: 0, ResumeAt: &at})
	if strings.Contains(e.URL, "progress") {
		t.Fatalf("expected no resume param, got %s", e.URL)
	}
}

func TestResolve_EscapesID(t *testing.T) {
	r := newDefault(t)
	e := r.Resolve(Request{Kind: KindMovie, MediaID: "a/b", SourceIndex: 0})
	if e.URL != "https://vidsrc.cc/v2/embed/movie/a%2Fb" {
		t.Fatalf("unexpected url: %s", e.URL)
	}
}

// ─── Advance / Select ───

func TestAdvance_Wraps(t *testing.T) {
	r := newDefault(t)
	cases := map[int]int{0: 1, 1: 2, 2: 3, 3: 0, -1: 0}
	for in, want := range cases {
		if got := r.Advance(in); got != want {
			t.Fatalf("Advance(%d): expected %d, got %d", in, want, got)
		}
	}
}

func TestAdvance_SingleSource(t *testing.T) {
	r, err := NewResolver(DefaultSources()[:1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.Advance(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestSelect(t *testing.T) {
	r := newDefault(t)
	if i, err := r.Select(3); err != nil || i != 3 {
		t.Fatalf("expected 3, got %d (%v)", i, err)
	}
	if _, err := r.Select(4); !errors.Is(err, ErrSourceOutOfRange) {
		t.Fatalf("expected ErrSourceOutOfRange, got %v", err)
	}
	if _, err := r.Select(-1); !errors.Is(err, ErrSourceOutOfRange) {
		t.Fatalf("expected ErrSourceOutOfRange, got %v", err)
	}
}

func TestSources_Listing(t *testing.T) {
	list := newDefault(t).Sources()
	if len(list) != 4 {
		t.Fatalf("expected 4 sources, got %d", len(list))
	}
	if list[1].Name != "videasy" || list[1].Index != 1 || !list[1].HasAds {
		t.Fatalf("unexpected listing: %+v", list[1])
	}
}

func TestNewResolver_Empty(t *testing.T) {
	if _, err := NewResolver(nil); err == nil {
		t.Fatal("expected error for empty source list")
	}
}

// ─── Sources file ───

func TestParseSources(t *testing.T) {
	data := []byte(`
[[source]]
name = "primary"
movie_url = "https://player.example.com/m/{id}"
episode_url = "https://player.example.com/t/{id}/{season}/{episode}"
sandbox_safe = true

[[source]]
name = "backup"
movie_url = "https://alt.example.com/m/{id}"
episode_url = "https://alt.example.com/t/{id}/{season}/{episode}"
has_ads = true
resume_param = "t"
`)
	sources, err := ParseSources(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 2 || sources[1].ResumeParam != "t" || !sources[0].SandboxSafe {
		t.Fatalf("unexpected sources: %+v", sources)
	}

	r, err := NewResolver(sources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	at := 30
	e := r.Resolve(Request{Kind: KindTVEpisode, MediaID: "9", Season: 1, Episode: 2, SourceIndex: 1, ResumeAt: &at})
	if e.URL != "https://alt.example.com/t/9/1/2?t=30" {
		t.Fatalf("unexpected url: %s", e.URL)
	}
}

func TestParseSources_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":       ``,
		"no id":       "[[source]]\nname=\"x\"\nmovie_url=\"https://a/m\"\nepisode_url=\"https://a/{id}/{season}/{episode}\"",
		"plain http":  "[[source]]\nname=\"x\"\nmovie_url=\"http://a/{id}\"\nepisode_url=\"https://a/{id}/{season}/{episode}\"",
		"no episode":  "[[source]]\nname=\"x\"\nmovie_url=\"https://a/{id}\"\nepisode_url=\"https://a/{id}\"",
		"no name":     "[[source]]\nmovie_url=\"https://a/{id}\"\nepisode_url=\"https://a/{id}/{season}/{episode}\"",
		"broken toml": "[[source]\n",
	}
	for name, data := range cases {
		if _, err := ParseSources([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	body := "[[source]]\nname=\"only\"\nmovie_url=\"https://a.example/{id}\"\nepisode_url=\"https://a.example/{id}/{season}/{episode}\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	sources, err := LoadSourcesFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "only" {
		t.Fatalf("unexpected sources: %+v", sources)
	}

	if _, err := LoadSourcesFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// ─── Anime ───

func TestAnimeURL(t *testing.T) {
	got := AnimeURL("21", 0, 3, nil)
	want := "https://player.videasy.net/anime/21/1/3?episodeSelector=true&nextEpisode=true&autoplayNextEpisode=true&overlay=true&color=ffbd7b"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	at := 90
	if got := AnimeURL("21", 1, 1, &at); !strings.HasSuffix(got, "&progress=90") {
		t.Fatalf("expected progress suffix, got %s", got)
	}
}

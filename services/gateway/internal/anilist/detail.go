package anilist

import (
	"context"
	"strconv"
	"strings"

	"github.com/example/media-platform/services/gateway/internal/media"
)

// Detail is the anime title page payload.
type Detail struct {
	media.Summary
	Description     string          `json:"description"`
	Genres          []string        `json:"genres"`
	Format          string          `json:"format,omitempty"`
	Status          string          `json:"status,omitempty"`
	Episodes        *int            `json:"episodes"`
	DurationMinutes *int            `json:"duration_minutes"`
	BannerURL       *string         `json:"banner_url"`
	Color           *string         `json:"color"`
	AniListURL      string          `json:"anilist_url"`
	Characters      []Character     `json:"characters"`
	Recommendations []media.Summary `json:"recommendations"`
}

type Character struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	ImageURL *string `json:"image_url"`
}

type detailData struct {
	Media *struct {
		mediaItem
		Genres     []string `json:"genres"`
		Format     string   `json:"format"`
		Status     string   `json:"status"`
		Episodes   *int     `json:"episodes"`
		Duration   *int     `json:"duration"`
		Characters struct {
			Edges []struct {
				Role string `json:"role"`
				Node struct {
					ID   int64 `json:"id"`
					Name struct {
						Full string `json:"full"`
					} `json:"name"`
					Image struct {
						Medium string `json:"medium"`
					} `json:"image"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"characters"`
		Recommendations struct {
			Nodes []struct {
				MediaRecommendation *mediaItem `json:"mediaRecommendation"`
			} `json:"nodes"`
		} `json:"recommendations"`
	} `json:"Media"`
}

const detailQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    ` + mediaFields + `
    genres
    format
    status
    episodes
    duration
    characters(sort: ROLE, perPage: 20) {
      edges { role node { id name { full } image { medium } } }
    }
    recommendations(perPage: 10, sort: RATING_DESC) {
      nodes {
        mediaRecommendation {
          ` + mediaFields + `
        }
      }
    }
  }
}`

// Detail loads one anime with its main characters and recommendations.
func (c *Client) Detail(ctx context.Context, id string) (Detail, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return Detail{}, &media.FetchError{Provider: "anilist", Op: "detail", Kind: media.ErrStatus, Status: 404, Err: media.ErrNotFound}
	}
	data, err := query[detailData](ctx, c, "detail", detailQuery, map[string]any{"id": n})
	if err != nil {
		return Detail{}, err
	}
	if data.Media == nil {
		return Detail{}, &media.FetchError{Provider: "anilist", Op: "detail", Kind: media.ErrStatus, Status: 404, Err: media.ErrNotFound}
	}
	m := data.Media
	d := Detail{
		Summary:         toSummary(m.mediaItem, 0),
		Description:     StripTags(m.Description),
		Genres:          m.Genres,
		Format:          m.Format,
		Status:          m.Status,
		Episodes:        m.Episodes,
		DurationMinutes: m.Duration,
		BannerURL:       media.StringPtr(m.BannerImage),
		Color:           media.StringPtr(m.CoverImage.Color),
		AniListURL:      URL(strconv.FormatInt(m.ID, 10)),
		Characters:      make([]Character, 0, len(m.Characters.Edges)),
		Recommendations: make([]media.Summary, 0, len(m.Recommendations.Nodes)),
	}
	if d.Genres == nil {
		d.Genres = []string{}
	}
	for _, e := range m.Characters.Edges {
		d.Characters = append(d.Characters, Character{
			ID:       strconv.FormatInt(e.Node.ID, 10),
			Name:     e.Node.Name.Full,
			Role:     e.Role,
			ImageURL: media.StringPtr(e.Node.Image.Medium),
		})
	}
	for _, r := range m.Recommendations.Nodes {
		if r.MediaRecommendation == nil {
			continue
		}
		d.Recommendations = append(d.Recommendations, toSummary(*r.MediaRecommendation, summaryOverviewRunes))
	}
	return d, nil
}

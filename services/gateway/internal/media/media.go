// Package media holds the provider-neutral catalog model shared by the
// adapters, the grids and search.
package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
	KindAnime Kind = "anime"
)

// ParseKind accepts the wire names of the three kinds.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMovie, KindTV, KindAnime:
		return k, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// Summary is one catalog entry as shown in grids and search results.
type Summary struct {
	Provider   Kind     `json:"provider"`
	ExternalID string   `json:"external_id"`
	Title      string   `json:"title"`
	ImageURL   *string  `json:"image_url"`
	Year       *int     `json:"year"`
	Score      *float64 `json:"score"`
	Overview   string   `json:"overview"`
}

// Key identifies a summary across pages and providers.
type Key struct {
	Kind       Kind
	ExternalID string
}

func (s Summary) Key() Key {
	return Key{Kind: s.Provider, ExternalID: s.ExternalID}
}

// Page is one fetched page of summaries.
type Page struct {
	Items      []Summary `json:"items"`
	HasMore    bool      `json:"has_more"`
	TotalPages int       `json:"total_pages,omitempty"`
}

// NormalizeScore clamps a rating into [0, 10]. NaN becomes nil.
func NormalizeScore(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	v = math.Max(0, math.Min(10, v))
	v = math.Round(v*10) / 10
	return &v
}

// YearFromDate returns the year of a "YYYY-MM-DD" style date, or nil when
// the first four characters are not a year.
func YearFromDate(date string) *int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}

// StringPtr returns nil for blank strings.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	ErrTransport ErrorKind = "transport"
	ErrStatus    ErrorKind = "status"
	ErrMalformed ErrorKind = "malformed"
	ErrUpstream  ErrorKind = "upstream"
)

// FetchError is the only error kind adapters return. It never carries a
// partial page.
type FetchError struct {
	Provider string
	Op       string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	msg := e.Provider + " " + e.Op + ": " + string(e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is, or wraps, a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ErrNotFound is wrapped by detail lookups that hit a 404.
var ErrNotFound = errors.New("not found")

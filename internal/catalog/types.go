package catalog

import (
	"context"
	"fmt"
)

// StoreLink is a place the game can be bought.
type StoreLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Game is a catalog entry enriched for display. RecommendReason is set per
// request and is never read back from the cache.
type Game struct {
	Slug            string      `json:"slug"`
	Name            string      `json:"name"`
	NameEN          string      `json:"name_en"`
	Cover           string      `json:"cover"`
	Screenshots     []string    `json:"screenshots"`
	Genres          []string    `json:"genres"`
	Platforms       []string    `json:"platforms"`
	Metacritic      *int        `json:"metacritic"`
	Rating          *float64    `json:"rating"`
	Description     string      `json:"description"`
	RecommendReason string      `json:"recommend_reason"`
	Stores          []StoreLink `json:"stores"`
	ReleaseYear     *int        `json:"release_year"`
	Playtime        string      `json:"playtime"`
	Tags            []string    `json:"tags"`
	Developer       string      `json:"developer"`
	Publisher       string      `json:"publisher"`

	// CatalogID is the provider's numeric identifier. Not part of the API payload.
	CatalogID int64 `json:"-"`
}

// WithReason returns a copy of g carrying the given recommendation reason.
func (g Game) WithReason(reason string) *Game {
	g.RecommendReason = reason
	return &g
}

// Resolver looks a single title up in an external catalog.
type Resolver interface {
	// Name returns the provider name (e.g., "rawg").
	Name() string
	// Resolve searches for nameEN and returns the enriched game, using name as
	// the localized display name. A nil game with a nil error means the
	// catalog has no match for the title.
	Resolve(ctx context.Context, nameEN, name string) (*Game, error)
}

// APIError reports a non-success HTTP response from a catalog call.
type APIError struct {
	Provider   string
	Step       string // search, details, screenshots, stores
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Provider, e.Step, e.StatusCode)
}

const (
	maxScreenshots    = 6
	maxTags           = 8
	maxDescriptionLen = 500
)

// truncateRunes cuts s to at most n characters without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// firstN returns at most n leading elements of s.
func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

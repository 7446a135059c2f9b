// Package model defines the shared data types for the venue aggregation pipeline.
package model

import (
	"sort"
	"time"
)

// Source identifies an external data provider contributing raw records.
type Source string

const (
	SourceYelp   Source = "yelp"
	SourceGoogle Source = "google"
)

// Valid reports whether s is a known provider identifier.
func (s Source) Valid() bool {
	return s == SourceYelp || s == SourceGoogle
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// WeeklyHours maps a lowercase weekday name ("monday".."sunday") to the
// open spans for that day, each formatted "HH:MM-HH:MM" in 24-hour time.
type WeeklyHours map[string][]string

// RawPlace is one provider's unmodified report of a venue from one
// collection run. Payload holds the source-specific response body as
// decoded JSON. Raw records are immutable; re-collection of the same
// (Source, SourceID) supersedes the earlier record rather than mutating it.
type RawPlace struct {
	ID          string         `json:"id"`
	Source      Source         `json:"source"`
	SourceID    string         `json:"source_id"`
	CitySlug    string         `json:"city_slug"`
	Category    string         `json:"category"`
	CollectedAt time.Time      `json:"collected_at"`
	Payload     map[string]any `json:"payload"`
}

// NormalizedPlace is a raw record mapped onto the canonical attribute set.
// It keeps the collection envelope (source, source id, collected_at) so the
// merge resolver can order cluster members by recency and union provenance.
type NormalizedPlace struct {
	Source      Source    `json:"source"`
	SourceID    string    `json:"source_id"`
	CitySlug    string    `json:"city_slug"`
	Category    string    `json:"category"`
	CollectedAt time.Time `json:"collected_at"`

	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coords      *Coordinates `json:"coords,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Website     string       `json:"website,omitempty"`
	Rating      *float64     `json:"rating,omitempty"`
	ReviewCount *int         `json:"review_count,omitempty"`
	PriceLevel  int          `json:"price_level,omitempty"` // 0 = unknown, 1-4 shared ordinal
	IsClosed    bool         `json:"is_closed,omitempty"`
	Hours       WeeklyHours  `json:"hours,omitempty"`
}

// Place is the canonical, deduplicated representation of one physical venue.
// Its durable Key is derived from (city, normalized name, rounded coordinates),
// never from any single provider's ID.
type Place struct {
	Key         string            `json:"key"`
	CitySlug    string            `json:"city_slug"`
	Name        string            `json:"name"`
	Address     string            `json:"address,omitempty"`
	Coords      *Coordinates      `json:"coords,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Website     string            `json:"website,omitempty"`
	Rating      *float64          `json:"rating,omitempty"`
	ReviewCount *int              `json:"review_count,omitempty"`
	PriceLevel  int               `json:"price_level,omitempty"`
	Category    string            `json:"category"`
	Categories  []string          `json:"categories"`
	IsClosed    bool              `json:"is_closed"`
	Hours       WeeklyHours       `json:"hours,omitempty"`
	SourceIDs   map[Source]string `json:"source_ids"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// AddCategory inserts c into the sorted category set, keeping it free of
// duplicates.
func (p *Place) AddCategory(c string) {
	if c == "" {
		return
	}
	for _, have := range p.Categories {
		if have == c {
			return
		}
	}
	p.Categories = append(p.Categories, c)
	sort.Strings(p.Categories)
}

// HasCategory reports whether c appears in the category set.
func (p *Place) HasCategory(c string) bool {
	for _, have := range p.Categories {
		if have == c {
			return true
		}
	}
	return false
}

// City is a reference entry scoping collection and matching. Matching is only
// ever performed between places sharing a city slug.
type City struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	State     string    `json:"state,omitempty"`
	Country   string    `json:"country"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

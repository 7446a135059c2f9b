// Package store persists cities, raw provider records, and canonical places.
package store

import (
	"context"

	"github.com/calmcompass/places-cli/internal/model"
)

// RawFilter narrows ListRawPlaces. Zero values mean "any".
type RawFilter struct {
	CitySlug string
	Category string
	Source   model.Source
}

// Store is the persistence interface for the aggregation pipeline. Raw
// records are append-mostly: re-collecting the same (source, source_id)
// supersedes the stored payload instead of duplicating it.
type Store interface {
	// Cities
	UpsertCity(ctx context.Context, city *model.City) error
	GetCity(ctx context.Context, slug string) (*model.City, error)
	ListCities(ctx context.Context) ([]model.City, error)

	// Raw provider records
	SaveRawPlaces(ctx context.Context, records []model.RawPlace) (inserted, updated int, err error)
	ListRawPlaces(ctx context.Context, filter RawFilter) ([]model.RawPlace, error)

	// Canonical places
	UpsertPlace(ctx context.Context, place *model.Place) error
	ListPlaces(ctx context.Context, citySlug string) ([]model.Place, error)
	ListPlacesByCategory(ctx context.Context, citySlug, category string) ([]model.Place, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Package provider defines the collector contract for external place APIs and
// the shared category registry that maps internal category slugs to each
// provider's search vocabulary.
package provider

import (
	"context"

	"github.com/calmcompass/places-cli/internal/model"
)

// Collector fetches raw place records for one city and category from a single
// external source. Implementations keep provider payloads verbatim; mapping to
// the canonical schema happens downstream.
type Collector interface {
	Source() model.Source
	Collect(ctx context.Context, city model.City, category string, max int) ([]model.RawPlace, error)
}

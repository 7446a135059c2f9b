package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calmcompass/places-cli/internal/model"
)

// PlaceKey derives the durable identity of a canonical place from its city,
// normalized name, and coordinates rounded to four decimals (~11 m). The key
// is deliberately independent of any provider's ID so the same venue resolves
// to the same record whichever source discovered it first.
func PlaceKey(citySlug, name string, coords *model.Coordinates) string {
	slug := strings.ToLower(strings.ReplaceAll(NormalizeName(name), " ", "-"))
	if coords == nil {
		return fmt.Sprintf("%s|%s|-", citySlug, slug)
	}
	return fmt.Sprintf("%s|%s|%.4f,%.4f", citySlug, slug, coords.Lat, coords.Lng)
}

// Merge folds a non-empty cluster of normalized records, plus an optional
// existing canonical record, into one canonical place. It has no side
// effects and performs no persistence.
//
// Field resolution:
//   - scalars take the most recently collected non-empty value, falling back
//     to the existing record; a present value is never overwritten by an
//     absent one
//   - coordinates are sticky: the first non-null pair wins for good
//   - rating and review_count travel as a pair from whichever contributor has
//     the most reviews, so differently-sized samples are never blended
//   - categories accumulate; the primary category follows the most recent
//     record's classification
//   - is_closed is sticky once any contributor reports closure
func Merge(cluster []model.NormalizedPlace, existing *model.Place) *model.Place {
	ordered := make([]model.NormalizedPlace, len(cluster))
	copy(ordered, cluster)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CollectedAt.Equal(ordered[j].CollectedAt) {
			return ordered[i].CollectedAt.Before(ordered[j].CollectedAt)
		}
		if ordered[i].Source != ordered[j].Source {
			return ordered[i].Source < ordered[j].Source
		}
		return ordered[i].SourceID < ordered[j].SourceID
	})

	out := &model.Place{SourceIDs: map[model.Source]string{}}
	if existing != nil {
		clone := *existing
		clone.SourceIDs = make(map[model.Source]string, len(existing.SourceIDs))
		for src, id := range existing.SourceIDs {
			clone.SourceIDs[src] = id
		}
		clone.Categories = append([]string(nil), existing.Categories...)
		clone.Hours = cloneHours(existing.Hours)
		if existing.Coords != nil {
			c := *existing.Coords
			clone.Coords = &c
		}
		out = &clone
	}

	// Rating and review_count candidates: the existing pair competes with
	// every cluster member; most reviews wins, later collection breaks ties.
	bestReviews := -1
	if existing != nil && (existing.Rating != nil || existing.ReviewCount != nil) {
		bestReviews = reviewCount(existing.ReviewCount)
	}

	for _, rec := range ordered {
		if rec.Name != "" {
			out.Name = rec.Name
		}
		if rec.Address != "" {
			out.Address = rec.Address
		}
		if rec.Phone != "" {
			out.Phone = rec.Phone
		}
		if rec.Website != "" {
			out.Website = rec.Website
		}
		if rec.PriceLevel != 0 {
			out.PriceLevel = rec.PriceLevel
		}
		if rec.Category != "" {
			out.Category = rec.Category
		}
		if len(rec.Hours) > 0 {
			out.Hours = cloneHours(rec.Hours)
		}
		if out.Coords == nil && rec.Coords != nil {
			c := *rec.Coords
			out.Coords = &c
		}
		if rec.IsClosed {
			out.IsClosed = true
		}
		if rec.Rating != nil || rec.ReviewCount != nil {
			if rc := reviewCount(rec.ReviewCount); rc >= bestReviews {
				bestReviews = rc
				out.Rating = copyFloat(rec.Rating)
				out.ReviewCount = copyInt(rec.ReviewCount)
			}
		}

		out.AddCategory(rec.Category)
		out.SourceIDs[rec.Source] = rec.SourceID

		if rec.CitySlug != "" {
			out.CitySlug = rec.CitySlug
		}
		if out.CreatedAt.IsZero() || (existing == nil && rec.CollectedAt.Before(out.CreatedAt)) {
			out.CreatedAt = rec.CollectedAt
		}
		if rec.CollectedAt.After(out.UpdatedAt) {
			out.UpdatedAt = rec.CollectedAt
		}
	}

	out.AddCategory(out.Category)

	if out.Key == "" {
		out.Key = PlaceKey(out.CitySlug, out.Name, out.Coords)
	}

	return out
}

func cloneHours(h model.WeeklyHours) model.WeeklyHours {
	if h == nil {
		return nil
	}
	out := make(model.WeeklyHours, len(h))
	for day, spans := range h {
		out[day] = append([]string(nil), spans...)
	}
	return out
}

func reviewCount(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmcompass/places-cli/internal/model"
)

var (
	t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
)

func clusterMember(source model.Source, id, name string, collected time.Time) model.NormalizedPlace {
	return model.NormalizedPlace{
		Source:      source,
		SourceID:    id,
		CitySlug:    "seattle",
		Category:    "escapegames",
		CollectedAt: collected,
		Name:        name,
		Coords:      &model.Coordinates{Lat: 47.6062, Lng: -122.3321},
	}
}

func TestMerge_SourceIDsUnion(t *testing.T) {
	a := clusterMember(model.SourceYelp, "yelp-1", "Joe's Escape Room", t0)
	b := clusterMember(model.SourceGoogle, "goog-1", "Joes Escape Rooms", t1)

	merged := Merge([]model.NormalizedPlace{a, b}, nil)

	assert.Equal(t, map[model.Source]string{
		model.SourceYelp:   "yelp-1",
		model.SourceGoogle: "goog-1",
	}, merged.SourceIDs)
}

func TestMerge_ScalarsPreferMostRecent(t *testing.T) {
	a := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t0)
	a.Phone = "2065550100"
	a.Address = "123 Pike St, Seattle, WA 98101"
	b := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t1)
	b.Phone = "2065550199"

	merged := Merge([]model.NormalizedPlace{a, b}, nil)

	assert.Equal(t, "Joes Escape Rooms", merged.Name)
	assert.Equal(t, "2065550199", merged.Phone)
	// The later record had no address; the earlier value survives.
	assert.Equal(t, "123 Pike St, Seattle, WA 98101", merged.Address)
}

func TestMerge_AbsentNeverOverwritesPresent(t *testing.T) {
	existing := &model.Place{
		Key:       "seattle|joes-escape-room|47.6062,-122.3321",
		CitySlug:  "seattle",
		Name:      "Joe's Escape Room",
		Phone:     "2065550100",
		Website:   "https://joesescape.example",
		Category:  "escapegames",
		SourceIDs: map[model.Source]string{model.SourceYelp: "y1"},
		CreatedAt: t0,
		UpdatedAt: t0,
	}

	update := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t1)
	merged := Merge([]model.NormalizedPlace{update}, existing)

	assert.Equal(t, "2065550100", merged.Phone)
	assert.Equal(t, "https://joesescape.example", merged.Website)
}

func TestMerge_CoordinatesSticky(t *testing.T) {
	existing := &model.Place{
		Key:       "seattle|joes-escape-room|47.6062,-122.3321",
		CitySlug:  "seattle",
		Name:      "Joe's Escape Room",
		Coords:    &model.Coordinates{Lat: 47.6062, Lng: -122.3321},
		SourceIDs: map[model.Source]string{model.SourceYelp: "y1"},
		CreatedAt: t0,
		UpdatedAt: t0,
	}

	update := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t1)
	update.Coords = &model.Coordinates{Lat: 47.6063, Lng: -122.3322}

	merged := Merge([]model.NormalizedPlace{update}, existing)
	assert.Equal(t, 47.6062, merged.Coords.Lat)
	assert.Equal(t, -122.3321, merged.Coords.Lng)
}

func TestMerge_RatingTravelsWithReviewCount(t *testing.T) {
	a := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t1)
	a.Rating = f(4.8)
	a.ReviewCount = n(12)
	b := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t0)
	b.Rating = f(4.2)
	b.ReviewCount = n(340)

	merged := Merge([]model.NormalizedPlace{a, b}, nil)

	// Google has far more reviews; its pair wins wholesale. No averaging.
	require.NotNil(t, merged.Rating)
	require.NotNil(t, merged.ReviewCount)
	assert.Equal(t, 4.2, *merged.Rating)
	assert.Equal(t, 340, *merged.ReviewCount)
}

func TestMerge_ClosedIsSticky(t *testing.T) {
	a := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t0)
	a.IsClosed = true
	b := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t1)
	b.IsClosed = false

	merged := Merge([]model.NormalizedPlace{a, b}, nil)
	assert.True(t, merged.IsClosed)

	// Also sticky coming from the stored record.
	existing := merged
	c := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t2)
	merged2 := Merge([]model.NormalizedPlace{c}, existing)
	assert.True(t, merged2.IsClosed)
}

func TestMerge_CategoriesAccumulate(t *testing.T) {
	a := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t0)
	a.Category = "escapegames"
	b := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t1)
	b.Category = "escape_room"

	merged := Merge([]model.NormalizedPlace{a, b}, nil)

	assert.Equal(t, "escape_room", merged.Category)
	assert.Equal(t, []string{"escape_room", "escapegames"}, merged.Categories)
}

func TestMerge_Timestamps(t *testing.T) {
	a := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t0)
	b := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t1)

	merged := Merge([]model.NormalizedPlace{b, a}, nil)
	assert.Equal(t, t0, merged.CreatedAt)
	assert.Equal(t, t1, merged.UpdatedAt)

	// Against an existing record, created_at is preserved and updated_at
	// never moves backwards.
	update := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t2)
	merged2 := Merge([]model.NormalizedPlace{update}, merged)
	assert.Equal(t, t0, merged2.CreatedAt)
	assert.Equal(t, t2, merged2.UpdatedAt)

	stale := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t0)
	merged3 := Merge([]model.NormalizedPlace{stale}, merged2)
	assert.Equal(t, t2, merged3.UpdatedAt)
}

func TestMerge_KeyStableAcrossUpdates(t *testing.T) {
	a := clusterMember(model.SourceYelp, "y1", "Joe's Escape Room", t0)
	merged := Merge([]model.NormalizedPlace{a}, nil)
	assert.Equal(t, "seattle|joes-escape-room|47.6062,-122.3321", merged.Key)

	// A rename does not change the durable key.
	b := clusterMember(model.SourceYelp, "y1", "Joe's Great Escape", t1)
	merged2 := Merge([]model.NormalizedPlace{b}, merged)
	assert.Equal(t, merged.Key, merged2.Key)
	assert.Equal(t, "Joe's Great Escape", merged2.Name)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := &model.Place{
		Key:       "seattle|joes-escape-room|47.6062,-122.3321",
		CitySlug:  "seattle",
		Name:      "Joe's Escape Room",
		SourceIDs: map[model.Source]string{model.SourceYelp: "y1"},
		CreatedAt: t0,
		UpdatedAt: t0,
	}

	update := clusterMember(model.SourceGoogle, "g1", "Joes Escape Rooms", t1)
	_ = Merge([]model.NormalizedPlace{update}, existing)

	assert.Equal(t, map[model.Source]string{model.SourceYelp: "y1"}, existing.SourceIDs)
	assert.Equal(t, "Joe's Escape Room", existing.Name)
}

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmcompass/places-cli/internal/model"
)

func rawYelp(id, city, name string, lat, lng float64, collected time.Time) model.RawPlace {
	return model.RawPlace{
		Source:      model.SourceYelp,
		SourceID:    id,
		CitySlug:    city,
		Category:    "escapegames",
		CollectedAt: collected,
		Payload: map[string]any{
			"name":        name,
			"coordinates": map[string]any{"latitude": lat, "longitude": lng},
		},
	}
}

func rawGoogle(id, city, name string, lat, lng float64, collected time.Time) model.RawPlace {
	return model.RawPlace{
		Source:      model.SourceGoogle,
		SourceID:    id,
		CitySlug:    city,
		Category:    "escape_room",
		CollectedAt: collected,
		Payload: map[string]any{
			"name": name,
			"geometry": map[string]any{
				"location": map[string]any{"lat": lat, "lng": lng},
			},
		},
	}
}

func emptyLookup(ctx context.Context, citySlug string) ([]model.Place, error) {
	return nil, nil
}

func lookupFrom(places map[string][]model.Place) LookupFunc {
	return func(ctx context.Context, citySlug string) ([]model.Place, error) {
		return places[citySlug], nil
	}
}

func TestReconcile_MergesAcrossSources(t *testing.T) {
	e := NewEngine(DefaultMatchConfig())
	collected := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := []model.RawPlace{
		rawYelp("y1", "seattle", "Joe's Escape Room", 47.6062, -122.3321, collected),
		rawGoogle("g1", "seattle", "Joes Escape Rooms LLC", 47.6063, -122.3322, collected),
	}

	results, err := e.Reconcile(context.Background(), batch, emptyLookup)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, ActionCreated, res.Action)
	require.NotNil(t, res.Place)
	assert.Equal(t, map[model.Source]string{
		model.SourceYelp:   "y1",
		model.SourceGoogle: "g1",
	}, res.Place.SourceIDs)
	assert.ElementsMatch(t, []string{"escapegames", "escape_room"}, res.Place.Categories)
}

func TestReconcile_RejectsUnusableRecords(t *testing.T) {
	e := NewEngine(DefaultMatchConfig())
	collected := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	noName := model.RawPlace{
		Source: model.SourceYelp, SourceID: "bad-1", CitySlug: "seattle",
		Category: "parks", CollectedAt: collected,
		Payload: map[string]any{"name": ""},
	}

	batch := []model.RawPlace{
		noName,
		rawYelp("y1", "seattle", "Greenlake Park", 47.6800, -122.3400, collected),
	}

	results, err := e.Reconcile(context.Background(), batch, emptyLookup)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var rejected, created int
	for _, res := range results {
		switch res.Action {
		case ActionRejected:
			rejected++
			require.NotNil(t, res.Raw)
			assert.Equal(t, "bad-1", res.Raw.SourceID)
			var verr *ValidationError
			assert.ErrorAs(t, res.Err, &verr)
			assert.Nil(t, res.Place)
		case ActionCreated:
			created++
		}
	}
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, created)
}

func TestReconcile_MatchingIsScopedByCity(t *testing.T) {
	e := NewEngine(DefaultMatchConfig())
	collected := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Same franchise name in two cities: never merged, cities are separate
	// partitions by construction.
	batch := []model.RawPlace{
		rawYelp("y1", "seattle", "Puzzle Break", 47.6062, -122.3321, collected),
		rawYelp("y2", "portland", "Puzzle Break", 45.5152, -122.6784, collected),
	}

	results, err := e.Reconcile(context.Background(), batch, emptyLookup)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEqual(t, results[0].Place.CitySlug, results[1].Place.CitySlug)
}

func TestReconcile_UpdatesExistingByKey(t *testing.T) {
	e := NewEngine(DefaultMatchConfig())
	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	initial, err := e.Reconcile(context.Background(),
		[]model.RawPlace{rawYelp("y1", "seattle", "Joe's Escape Room", 47.6062, -122.3321, first)},
		emptyLookup)
	require.NoError(t, err)
	require.Len(t, initial, 1)

	stored := map[string][]model.Place{"seattle": {*initial[0].Place}}

	// Google discovers the same venue a month later.
	results, err := e.Reconcile(context.Background(),
		[]model.RawPlace{rawGoogle("g1", "seattle", "Joes Escape Rooms LLC", 47.6063, -122.3322, second)},
		lookupFrom(stored))
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, initial[0].Place.Key, res.Place.Key)
	assert.Equal(t, first, res.Place.CreatedAt)
	assert.Equal(t, second, res.Place.UpdatedAt)
	assert.Len(t, res.Place.SourceIDs, 2)
}

func TestReconcile_Idempotent(t *testing.T) {
	e := NewEngine(DefaultMatchConfig())
	collected := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := []model.RawPlace{
		rawYelp("y1", "seattle", "Joe's Escape Room", 47.6062, -122.3321, collected),
		rawGoogle("g1", "seattle", "Joes Escape Rooms LLC", 47.6063, -122.3322, collected),
		rawYelp("y2", "seattle", "Greenlake Park", 47.6800, -122.3400, collected),
	}

	first, err := e.Reconcile(context.Background(), batch, emptyLookup)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Persist pass one, then replay the same batch against the stored state.
	stored := map[string][]model.Place{}
	for _, res := range first {
		stored[res.Place.CitySlug] = append(stored[res.Place.CitySlug], *res.Place)
	}

	second, err := e.Reconcile(context.Background(), batch, lookupFrom(stored))
	require.NoError(t, err)
	require.Len(t, second, 2)

	byKey := map[string]*model.Place{}
	for _, res := range first {
		byKey[res.Place.Key] = res.Place
	}
	for _, res := range second {
		assert.Equal(t, ActionUpdated, res.Action)
		prev, ok := byKey[res.Place.Key]
		require.True(t, ok, "second pass invented key %s", res.Place.Key)
		assert.Equal(t, prev, res.Place, "record drifted on replay")
	}
}

func TestReconcile_FoldsClustersSharingOneExistingRecord(t *testing.T) {
	e := NewEngine(DefaultMatchConfig())
	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	initial, err := e.Reconcile(context.Background(),
		[]model.RawPlace{rawYelp("y1", "seattle", "Joe's Escape Room", 47.6062, -122.3321, first)},
		emptyLookup)
	require.NoError(t, err)
	stored := map[string][]model.Place{"seattle": {*initial[0].Place}}

	// Two listings that both resolve to the stored record but not to each
	// other ("Joe's Room" shares only one token with the Google listing)
	// still produce a single Updated result.
	batch := []model.RawPlace{
		rawGoogle("g1", "seattle", "Joes Escape Rooms LLC", 47.6063, -122.3322, second),
		rawYelp("y9", "seattle", "Joe's Room", 47.6062, -122.3321, second),
	}

	results, err := e.Reconcile(context.Background(), batch, lookupFrom(stored))
	require.NoError(t, err)

	var updated []Result
	for _, res := range results {
		if res.Action == ActionUpdated {
			updated = append(updated, res)
		}
	}
	require.Len(t, updated, 1)
	assert.Equal(t, initial[0].Place.Key, updated[0].Place.Key)
}

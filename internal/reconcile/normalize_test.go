package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmcompass/places-cli/internal/model"
)

func yelpRaw(payload map[string]any) model.RawPlace {
	return model.RawPlace{
		Source:      model.SourceYelp,
		SourceID:    "yelp-abc",
		CitySlug:    "seattle",
		Category:    "escapegames",
		CollectedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:     payload,
	}
}

func googleRaw(payload map[string]any) model.RawPlace {
	raw := yelpRaw(payload)
	raw.Source = model.SourceGoogle
	raw.SourceID = "goog-abc"
	return raw
}

func TestNormalize_Yelp(t *testing.T) {
	raw := yelpRaw(map[string]any{
		"name":  "joe's escape room",
		"phone": "+1 (206) 555-0100",
		"url":   "https://www.yelp.com/biz/joes-escape-room-seattle",
		"location": map[string]any{
			"display_address": []any{"123 Pike St", "Seattle, WA 98101"},
		},
		"coordinates":  map[string]any{"latitude": 47.6062, "longitude": -122.3321},
		"rating":       4.5,
		"review_count": float64(87),
		"price":        "$$",
		"is_closed":    false,
	})

	n, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "Joe's Escape Room", n.Name)
	assert.Equal(t, "123 Pike St, Seattle, WA 98101", n.Address)
	assert.Equal(t, "+12065550100", n.Phone)
	assert.Equal(t, "https://www.yelp.com/biz/joes-escape-room-seattle", n.Website)
	require.NotNil(t, n.Coords)
	assert.Equal(t, 47.6062, n.Coords.Lat)
	require.NotNil(t, n.Rating)
	assert.Equal(t, 4.5, *n.Rating)
	require.NotNil(t, n.ReviewCount)
	assert.Equal(t, 87, *n.ReviewCount)
	assert.Equal(t, 2, n.PriceLevel)
	assert.False(t, n.IsClosed)

	// Envelope carried through.
	assert.Equal(t, model.SourceYelp, n.Source)
	assert.Equal(t, "yelp-abc", n.SourceID)
	assert.Equal(t, "seattle", n.CitySlug)
	assert.Equal(t, "escapegames", n.Category)
}

func TestNormalize_Google(t *testing.T) {
	raw := googleRaw(map[string]any{
		"name":                   "JOES ESCAPE ROOMS LLC",
		"formatted_address":      "123 Pike St, Seattle, WA 98101, USA",
		"formatted_phone_number": "(206) 555-0100",
		"website":                "https://joesescape.example",
		"geometry": map[string]any{
			"location": map[string]any{"lat": 47.6063, "lng": -122.3322},
		},
		"rating":             4.2,
		"user_ratings_total": float64(340),
		"price_level":        float64(3),
		"business_status":    "CLOSED_PERMANENTLY",
	})

	n, err := Normalize(raw)
	require.NoError(t, err)

	// All-caps source names are fully recased.
	assert.Equal(t, "Joes Escape Rooms Llc", n.Name)
	assert.Equal(t, "2065550100", n.Phone)
	assert.Equal(t, "https://joesescape.example", n.Website)
	require.NotNil(t, n.Coords)
	assert.Equal(t, -122.3322, n.Coords.Lng)
	assert.Equal(t, 3, n.PriceLevel)
	assert.True(t, n.IsClosed)
}

func TestNormalize_PreservesInteriorCaps(t *testing.T) {
	raw := yelpRaw(map[string]any{
		"name":        "SeaTac float spa",
		"coordinates": map[string]any{"latitude": 47.4444, "longitude": -122.3000},
	})
	n, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "SeaTac Float Spa", n.Name)
}

func TestNormalize_ClampsRating(t *testing.T) {
	raw := yelpRaw(map[string]any{
		"name":        "Joe's Escape Room",
		"coordinates": map[string]any{"latitude": 47.6062, "longitude": -122.3321},
		"rating":      7.3,
	})
	n, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, n.Rating)
	assert.Equal(t, 5.0, *n.Rating)
}

func TestNormalize_RejectsMissingName(t *testing.T) {
	raw := yelpRaw(map[string]any{
		"name":        "   ",
		"coordinates": map[string]any{"latitude": 47.6062, "longitude": -122.3321},
	})
	_, err := Normalize(raw)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "missing name", verr.Reason)
	assert.Equal(t, "yelp-abc", verr.SourceID)
}

func TestNormalize_RejectsMissingCoordinates(t *testing.T) {
	_, err := Normalize(yelpRaw(map[string]any{"name": "Joe's Escape Room"}))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "missing coordinates", verr.Reason)

	// Null island counts as missing.
	_, err = Normalize(yelpRaw(map[string]any{
		"name":        "Joe's Escape Room",
		"coordinates": map[string]any{"latitude": float64(0), "longitude": float64(0)},
	}))
	require.ErrorAs(t, err, &verr)
}

func TestNormalize_RejectsUnknownSource(t *testing.T) {
	raw := yelpRaw(map[string]any{"name": "Joe's"})
	raw.Source = model.Source("tripadvisor")

	_, err := Normalize(raw)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unknown source", verr.Reason)
}

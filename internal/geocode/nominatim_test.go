package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Seattle, WA", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"lat":          "47.6038321",
				"lon":          "-122.330062",
				"display_name": "Seattle, King County, Washington, United States",
				"address": map[string]any{
					"city":         "Seattle",
					"state":        "Washington",
					"country_code": "us",
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "places-cli-test")
	city, err := c.Lookup(context.Background(), "Seattle, WA")
	require.NoError(t, err)

	assert.Equal(t, "seattle", city.Slug)
	assert.Equal(t, "Seattle", city.Name)
	assert.Equal(t, "Washington", city.State)
	assert.Equal(t, "US", city.Country)
	assert.InDelta(t, 47.6038, city.Lat, 0.001)
	assert.InDelta(t, -122.3300, city.Lng, 0.001)
}

func TestLookup_TownFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"lat": "44.0522", "lon": "-122.9715",
				"display_name": "Walterville, Lane County, Oregon, United States",
				"address": map[string]any{
					"town":         "Walterville",
					"state":        "Oregon",
					"country_code": "us",
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "places-cli-test")
	city, err := c.Lookup(context.Background(), "Walterville")
	require.NoError(t, err)
	assert.Equal(t, "Walterville", city.Name)
	assert.Equal(t, "walterville", city.Slug)
}

func TestLookup_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, "places-cli-test")
	_, err := c.Lookup(context.Background(), "Nowhereville Qzx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results")
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Seattle", "seattle"},
		{"New York", "new-york"},
		{"Coeur d'Alene", "coeur-dalene"},
		{"  Winston-Salem  ", "winston-salem"},
		{"St. Louis", "st-louis"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), "Slug(%q)", tt.in)
	}
}

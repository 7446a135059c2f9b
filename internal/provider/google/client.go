// Package google collects place records from the Google Places API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/calmcompass/places-cli/internal/model"
	"github.com/calmcompass/places-cli/internal/provider"
)

// detailFields is the field mask requested from the details endpoint. The
// text search response omits phone numbers, websites, and opening hours.
const detailFields = "place_id,name,formatted_address,formatted_phone_number," +
	"international_phone_number,website,geometry,rating,user_ratings_total," +
	"price_level,business_status,opening_hours"

// Client pages through text search results and enriches each hit with a
// details lookup.
type Client struct {
	http    *http.Client
	key     string
	baseURL string
	limiter *rate.Limiter
	now     func() time.Time

	// pageDelay is the wait before a next_page_token becomes usable.
	pageDelay time.Duration
}

// New creates a Google Places collector.
func New(key, baseURL string, qps float64) *Client {
	if qps <= 0 {
		qps = 8
	}
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		key:       key,
		baseURL:   baseURL,
		limiter:   rate.NewLimiter(rate.Limit(qps), 1),
		now:       time.Now,
		pageDelay: 2 * time.Second,
	}
}

func (c *Client) Source() model.Source {
	return model.SourceGoogle
}

type searchResponse struct {
	Status        string           `json:"status"`
	NextPageToken string           `json:"next_page_token"`
	Results       []map[string]any `json:"results"`
}

type detailsResponse struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
}

// Collect runs a text search for the category in the city, following page
// tokens until exhausted or max records are gathered.
func (c *Client) Collect(ctx context.Context, city model.City, category string, max int) ([]model.RawPlace, error) {
	cat, ok := provider.Lookup(category)
	if !ok {
		return nil, eris.Errorf("google: unknown category %q", category)
	}

	query := fmt.Sprintf("%s in %s", cat.Google, city.Name)
	var records []model.RawPlace
	pageToken := ""

	for {
		results, nextToken, err := c.searchPage(ctx, query, pageToken)
		if err != nil {
			return records, err
		}

		for _, hit := range results {
			if max > 0 && len(records) >= max {
				return records, nil
			}
			placeID, _ := hit["place_id"].(string)
			if placeID == "" {
				continue
			}

			payload, err := c.details(ctx, placeID)
			if err != nil {
				zap.L().Warn("google details lookup failed, keeping search hit",
					zap.String("place_id", placeID),
					zap.Error(err),
				)
				payload = hit
			}

			records = append(records, model.RawPlace{
				Source:      model.SourceGoogle,
				SourceID:    placeID,
				CitySlug:    city.Slug,
				Category:    category,
				CollectedAt: c.now().UTC(),
				Payload:     payload,
			})
		}

		if nextToken == "" || (max > 0 && len(records) >= max) {
			break
		}
		pageToken = nextToken

		// Tokens are not immediately valid after issue.
		select {
		case <-ctx.Done():
			return records, eris.Wrap(ctx.Err(), "google: wait for page token")
		case <-time.After(c.pageDelay):
		}
	}

	zap.L().Debug("google collect finished",
		zap.String("city", city.Slug),
		zap.String("category", category),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (c *Client) searchPage(ctx context.Context, query, pageToken string) ([]map[string]any, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", eris.Wrap(err, "google: rate limiter wait")
	}

	q := url.Values{}
	q.Set("key", c.key)
	if pageToken != "" {
		q.Set("pagetoken", pageToken)
	} else {
		q.Set("query", query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/textsearch/json?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "google: create search request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "google: text search")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("google: text search returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, "", eris.Wrap(err, "google: decode search response")
	}
	if sr.Status != "OK" && sr.Status != "ZERO_RESULTS" {
		return nil, "", eris.Errorf("google: text search status %s", sr.Status)
	}
	return sr.Results, sr.NextPageToken, nil
}

func (c *Client) details(ctx context.Context, placeID string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "google: rate limiter wait")
	}

	q := url.Values{}
	q.Set("key", c.key)
	q.Set("place_id", placeID)
	q.Set("fields", detailFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/details/json?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create details request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: details")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: details returned status %d", resp.StatusCode)
	}

	var dr detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, eris.Wrap(err, "google: decode details response")
	}
	if dr.Status != "OK" {
		return nil, eris.Errorf("google: details status %s", dr.Status)
	}
	return dr.Result, nil
}

// Package yelp collects business records from the Yelp Fusion API.
package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/calmcompass/places-cli/internal/model"
	"github.com/calmcompass/places-cli/internal/provider"
)

const (
	pageSize = 50
	// Fusion rejects searches past the first 1000 results.
	maxOffset = 1000
)

// Client searches the Fusion business endpoint page by page.
type Client struct {
	http    *http.Client
	key     string
	baseURL string
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Yelp collector. qps throttles request rate against the
// Fusion daily quota.
func New(key, baseURL string, qps float64) *Client {
	if qps <= 0 {
		qps = 4
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		key:     key,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(qps), 1),
		now:     time.Now,
	}
}

func (c *Client) Source() model.Source {
	return model.SourceYelp
}

type searchResponse struct {
	Total      int              `json:"total"`
	Businesses []map[string]any `json:"businesses"`
}

// Collect pages through the business search for one city and category.
func (c *Client) Collect(ctx context.Context, city model.City, category string, max int) ([]model.RawPlace, error) {
	cat, ok := provider.Lookup(category)
	if !ok {
		return nil, eris.Errorf("yelp: unknown category %q", category)
	}

	var records []model.RawPlace
	for offset := 0; offset < maxOffset; offset += pageSize {
		if max > 0 && len(records) >= max {
			break
		}

		page, total, err := c.searchPage(ctx, city, cat.Yelp, offset)
		if err != nil {
			return records, err
		}

		collected := c.now().UTC()
		for _, hit := range page {
			id, _ := hit["id"].(string)
			if id == "" {
				continue
			}

			// Search results omit hours; the details endpoint has them.
			payload, err := c.details(ctx, id)
			if err != nil {
				zap.L().Warn("yelp details lookup failed, keeping search hit",
					zap.String("business_id", id),
					zap.Error(err),
				)
				payload = hit
			}

			records = append(records, model.RawPlace{
				Source:      model.SourceYelp,
				SourceID:    id,
				CitySlug:    city.Slug,
				Category:    category,
				CollectedAt: collected,
				Payload:     payload,
			})
			if max > 0 && len(records) >= max {
				break
			}
		}

		if len(page) == 0 || offset+pageSize >= total {
			break
		}
	}

	zap.L().Debug("yelp collect finished",
		zap.String("city", city.Slug),
		zap.String("category", category),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (c *Client) searchPage(ctx context.Context, city model.City, alias string, offset int) ([]map[string]any, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "yelp: rate limiter wait")
	}

	q := url.Values{}
	q.Set("categories", alias)
	q.Set("latitude", strconv.FormatFloat(city.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(city.Lng, 'f', -1, 64))
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort_by", "distance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/businesses/search?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "yelp: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "yelp: search")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, 0, eris.Errorf("yelp: search returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, 0, eris.Wrap(err, "yelp: decode search response")
	}
	return sr.Businesses, sr.Total, nil
}

func (c *Client) details(ctx context.Context, id string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "yelp: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/businesses/%s", c.baseURL, url.PathEscape(id)), nil)
	if err != nil {
		return nil, eris.Wrap(err, "yelp: create details request")
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "yelp: details")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("yelp: details returned status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "yelp: decode details response")
	}
	return payload, nil
}

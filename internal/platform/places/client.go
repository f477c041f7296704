// Package places fetches dog-relevant points of interest from the Google
// Places API (nearby search around the Brussels center).
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// ErrCircuitOpen signals the breaker is open after repeated quota/rate
// responses from the API.
var ErrCircuitOpen = errors.New("google places circuit open due to repeated limit errors")

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Brussels center, used as the search anchor.
const (
	brusselsLat  = 50.8466
	brusselsLng  = 4.3528
	searchRadius = 8000 // meters
)

// categorySearches maps the app's place categories to Places API types.
var categorySearches = []struct {
	category  string
	placeType string
}{
	{"park", "park"},
	{"vet", "veterinary_care"},
	{"pet_store", "pet_store"},
	{"cafe", "cafe"},
}

// Client wraps Places API calls with retry and circuit breaker support.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient

	maxRetries       int
	breakerThreshold int
	consecutiveLimit int
}

// Config defines settings for the Places client.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	BreakerMax int
}

// New creates a Places client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	breaker := cfg.BreakerMax
	if breaker <= 0 {
		breaker = 5
	}
	return &Client{
		apiKey:           cfg.APIKey,
		baseURL:          base,
		httpClient:       httpClient,
		maxRetries:       maxRetries,
		breakerThreshold: breaker,
	}
}

// FetchPlaces runs one nearby search per category and merges the results.
func (c *Client) FetchPlaces(ctx context.Context) ([]model.DogPlaceData, error) {
	var all []model.DogPlaceData
	for _, search := range categorySearches {
		results, err := c.searchCategory(ctx, search.placeType, search.category)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", search.category, err)
		}
		all = append(all, results...)
	}
	return all, nil
}

func (c *Client) searchCategory(ctx context.Context, placeType, category string) ([]model.DogPlaceData, error) {
	var results []model.DogPlaceData
	pageToken := ""

	// The API serves at most three pages per search.
	for page := 0; page < 3; page++ {
		body, err := c.request(ctx, placeType, pageToken)
		if err != nil {
			return nil, err
		}

		for _, raw := range body.Results {
			results = append(results, model.DogPlaceData{
				ID:          raw.PlaceID,
				PlaceID:     raw.PlaceID,
				Name:        raw.Name,
				Category:    category,
				Address:     raw.Vicinity,
				Location:    model.GeoPoint{Latitude: raw.Geometry.Location.Lat, Longitude: raw.Geometry.Location.Lng},
				Rating:      raw.Rating,
				Source:      model.ProviderGoogle,
				Active:      true,
				LastUpdated: time.Now().UTC(),
			})
		}

		if body.NextPageToken == "" {
			break
		}
		pageToken = body.NextPageToken
		// Page tokens need a moment before they become valid.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return results, nil
}

func (c *Client) request(ctx context.Context, placeType, pageToken string) (*searchResponse, error) {
	if c.consecutiveLimit >= c.breakerThreshold {
		return nil, ErrCircuitOpen
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("location", fmt.Sprintf("%f,%f", brusselsLat, brusselsLng))
	params.Set("radius", fmt.Sprintf("%d", searchRadius))
	params.Set("type", placeType)
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	}

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.consecutiveLimit++
			if c.consecutiveLimit >= c.breakerThreshold {
				return nil, ErrCircuitOpen
			}
			lastErr = fmt.Errorf("places status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("places status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var decoded searchResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		switch decoded.Status {
		case "OK", "ZERO_RESULTS":
			c.consecutiveLimit = 0
			return &decoded, nil
		case "OVER_QUERY_LIMIT":
			c.consecutiveLimit++
			if c.consecutiveLimit >= c.breakerThreshold {
				return nil, ErrCircuitOpen
			}
			lastErr = fmt.Errorf("places status %s", decoded.Status)
			continue
		default:
			return nil, fmt.Errorf("places status %s: %s", decoded.Status, decoded.ErrorMessage)
		}
	}
	return nil, fmt.Errorf("places search failed after retries: %w", lastErr)
}

type searchResponse struct {
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message"`
	NextPageToken string        `json:"next_page_token"`
	Results       []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string  `json:"place_id"`
	Name     string  `json:"name"`
	Vicinity string  `json:"vicinity"`
	Rating   float64 `json:"rating"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

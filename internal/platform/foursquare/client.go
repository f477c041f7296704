// Package foursquare fetches points of interest from the Foursquare Places
// API (v3 search), used as the fallback source for the dog-places pipeline.
package foursquare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	brusselsLat  = 50.8466
	brusselsLng  = 4.3528
	searchRadius = 8000
)

// categorySearches maps Foursquare category ids to the app's categories.
var categorySearches = []struct {
	fsqCategory string
	category    string
}{
	{"16032", "park"},      // Park
	{"11134", "vet"},       // Veterinarian
	{"17115", "pet_store"}, // Pet Store
	{"13032", "cafe"},      // Café
}

// Client wraps Foursquare v3 search calls.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
	maxRetries int
}

// Config defines settings for the Foursquare client.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// New creates a Foursquare client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.foursquare.com/v3/places/search"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{apiKey: cfg.APIKey, baseURL: base, httpClient: httpClient, maxRetries: maxRetries}
}

// FetchPlaces runs one search per category and merges the results.
func (c *Client) FetchPlaces(ctx context.Context) ([]model.DogPlaceData, error) {
	var all []model.DogPlaceData
	for _, search := range categorySearches {
		results, err := c.search(ctx, search.fsqCategory, search.category)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", search.category, err)
		}
		all = append(all, results...)
	}
	return all, nil
}

func (c *Client) search(ctx context.Context, fsqCategory, category string) ([]model.DogPlaceData, error) {
	params := url.Values{}
	params.Set("ll", fmt.Sprintf("%f,%f", brusselsLat, brusselsLng))
	params.Set("radius", strconv.Itoa(searchRadius))
	params.Set("categories", fsqCategory)
	params.Set("limit", "50")

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", c.apiKey)

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
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("foursquare status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var decoded searchResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		places := make([]model.DogPlaceData, 0, len(decoded.Results))
		for _, raw := range decoded.Results {
			places = append(places, model.DogPlaceData{
				ID:          raw.FsqID,
				PlaceID:     raw.FsqID,
				Name:        raw.Name,
				Category:    category,
				Address:     raw.Location.FormattedAddress,
				Location:    model.GeoPoint{Latitude: raw.Geocodes.Main.Latitude, Longitude: raw.Geocodes.Main.Longitude},
				Website:     raw.Website,
				Source:      model.ProviderFoursquare,
				Active:      true,
				LastUpdated: time.Now().UTC(),
			})
		}
		return places, nil
	}
	return nil, fmt.Errorf("foursquare search failed after retries: %w", lastErr)
}

type searchResponse struct {
	Results []fsqPlace `json:"results"`
}

type fsqPlace struct {
	FsqID    string `json:"fsq_id"`
	Name     string `json:"name"`
	Website  string `json:"website"`
	Location struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"location"`
	Geocodes struct {
		Main struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
}

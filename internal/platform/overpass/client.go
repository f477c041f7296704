// Package overpass fetches OpenStreetMap data for the Brussels bounding box
// through the Overpass API. It can supply both street addresses (addr:*
// tagged nodes) and dog-relevant amenities.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Brussels-Capital Region bounding box in Overpass order (south, west,
// north, east).
const brusselsBBox = "50.76,4.24,50.92,4.48"

// Client posts Overpass QL queries.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	timeoutSec int
}

// Config defines settings for the Overpass client.
type Config struct {
	BaseURL    string
	TimeoutSec int
}

// New creates an Overpass client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://overpass-api.de/api/interpreter"
	}
	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 90
	}
	return &Client{baseURL: base, httpClient: httpClient, timeoutSec: timeout}
}

// FetchAddresses queries nodes carrying full address tags.
func (c *Client) FetchAddresses(ctx context.Context) ([]model.AddressData, error) {
	query := fmt.Sprintf(`[out:json][timeout:%d];
node["addr:street"]["addr:housenumber"](%s);
out body;`, c.timeoutSec, brusselsBBox)

	elements, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}

	addresses := make([]model.AddressData, 0, len(elements))
	for _, el := range elements {
		addr := model.AddressData{
			ID:           "osm-" + strconv.FormatInt(el.ID, 10),
			Street:       el.Tags["addr:street"],
			Number:       el.Tags["addr:housenumber"],
			Municipality: el.Tags["addr:city"],
			PostalCode:   el.Tags["addr:postcode"],
			Location:     model.GeoPoint{Latitude: el.Lat, Longitude: el.Lon},
			Source:       model.ProviderOSM,
			Active:       true,
			LastUpdated:  time.Now().UTC(),
		}
		addr.Formatted = fmt.Sprintf("%s %s, %s %s", addr.Street, addr.Number, addr.PostalCode, addr.Municipality)
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// amenityCategories maps OSM tags to the app's place categories.
var amenityCategories = []struct {
	filter   string
	category string
}{
	{`node["leisure"="park"]`, "park"},
	{`node["amenity"="veterinary"]`, "vet"},
	{`node["shop"="pet"]`, "pet_store"},
	{`node["amenity"="cafe"]["dog"="yes"]`, "cafe"},
}

// FetchPlaces queries dog-relevant amenities.
func (c *Client) FetchPlaces(ctx context.Context) ([]model.DogPlaceData, error) {
	var filters strings.Builder
	for _, a := range amenityCategories {
		fmt.Fprintf(&filters, "%s(%s);\n", a.filter, brusselsBBox)
	}
	query := fmt.Sprintf("[out:json][timeout:%d];\n(\n%s);\nout body;", c.timeoutSec, filters.String())

	elements, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}

	places := make([]model.DogPlaceData, 0, len(elements))
	for _, el := range elements {
		name := el.Tags["name"]
		if name == "" {
			continue
		}
		places = append(places, model.DogPlaceData{
			ID:          "osm-" + strconv.FormatInt(el.ID, 10),
			Name:        name,
			Category:    categorize(el.Tags),
			Location:    model.GeoPoint{Latitude: el.Lat, Longitude: el.Lon},
			Phone:       el.Tags["phone"],
			Website:     el.Tags["website"],
			Source:      model.ProviderOSM,
			Active:      true,
			LastUpdated: time.Now().UTC(),
		})
	}
	return places, nil
}

func categorize(tags map[string]string) string {
	switch {
	case tags["leisure"] == "park":
		return "park"
	case tags["amenity"] == "veterinary":
		return "vet"
	case tags["shop"] == "pet":
		return "pet_store"
	case tags["amenity"] == "cafe":
		return "cafe"
	default:
		return "other"
	}
}

func (c *Client) run(ctx context.Context, query string) ([]element, error) {
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("overpass status %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Elements []element `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	return decoded.Elements, nil
}

type element struct {
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

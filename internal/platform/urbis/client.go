// Package urbis fetches street addresses from the Brussels URBIS WFS
// service (GetFeature over the address-point layer, GeoJSON output).
package urbis

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

// Client queries the URBIS WFS endpoint.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	pageSize   int
	maxPages   int
}

// Config defines settings for the URBIS client.
type Config struct {
	BaseURL  string
	PageSize int
	MaxPages int
}

// New creates a URBIS client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://geoservices-urbis.irisnet.be/geoserver/ows"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Client{baseURL: base, httpClient: httpClient, pageSize: pageSize, maxPages: maxPages}
}

// FetchAddresses pages through the address layer until a short page or the
// page cap is reached.
func (c *Client) FetchAddresses(ctx context.Context) ([]model.AddressData, error) {
	var all []model.AddressData
	for page := 0; page < c.maxPages; page++ {
		features, err := c.fetchPage(ctx, page*c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, features...)
		if len(features) < c.pageSize {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]model.AddressData, error) {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", "UrbisAdm:Adpt")
	params.Set("outputFormat", "application/json")
	params.Set("srsName", "EPSG:4326")
	params.Set("count", strconv.Itoa(c.pageSize))
	params.Set("startIndex", strconv.Itoa(offset))

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wfs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("wfs status %d: %s", resp.StatusCode, string(body))
	}

	var collection featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	addresses := make([]model.AddressData, 0, len(collection.Features))
	for _, f := range collection.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		addr := model.AddressData{
			ID:           f.ID,
			Street:       f.Properties.StreetNameFR,
			Number:       f.Properties.Number,
			Municipality: f.Properties.MunicipalityFR,
			PostalCode:   f.Properties.PostalCode,
			Location: model.GeoPoint{
				// GeoJSON order is lng, lat.
				Latitude:  f.Geometry.Coordinates[1],
				Longitude: f.Geometry.Coordinates[0],
			},
			Source:      model.ProviderURBIS,
			Active:      true,
			LastUpdated: time.Now().UTC(),
		}
		addr.Formatted = formatAddress(addr)
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

func formatAddress(a model.AddressData) string {
	return fmt.Sprintf("%s %s, %s %s", a.Street, a.Number, a.PostalCode, a.Municipality)
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID       string `json:"id"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		StreetNameFR   string `json:"PN_NAME_FRE"`
		Number         string `json:"ADRN"`
		PostalCode     string `json:"PZ_NATIONAL_CODE"`
		MunicipalityFR string `json:"MU_NAME_FRE"`
	} `json:"properties"`
}

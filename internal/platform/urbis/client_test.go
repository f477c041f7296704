package urbis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func featureJSON(id, street, number, postal, muni string, lng, lat float64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"geometry": {"coordinates": [%f, %f]},
		"properties": {"PN_NAME_FRE": %q, "ADRN": %q, "PZ_NATIONAL_CODE": %q, "MU_NAME_FRE": %q}
	}`, id, lng, lat, street, number, postal, muni)
}

func TestFetchAddressesPagesUntilShortPage(t *testing.T) {
	var startIndexes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("startIndex")
		startIndexes = append(startIndexes, start)

		w.Header().Set("Content-Type", "application/json")
		if start == "0" {
			fmt.Fprintf(w, `{"features": [%s, %s]}`,
				featureJSON("adpt.1", "Rue Haute", "154", "1000", "Bruxelles", 4.3431, 50.8370),
				featureJSON("adpt.2", "Rue Blaes", "2", "1000", "Bruxelles", 4.3445, 50.8385),
			)
			return
		}
		fmt.Fprintf(w, `{"features": [%s]}`,
			featureJSON("adpt.3", "Avenue Louise", "1", "1050", "Ixelles", 4.3601, 50.8324),
		)
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL, PageSize: 2})
	addrs, err := client.FetchAddresses(context.Background())
	if err != nil {
		t.Fatalf("FetchAddresses: %v", err)
	}

	if len(addrs) != 3 {
		t.Fatalf("got %d addresses, want 3", len(addrs))
	}
	if len(startIndexes) != 2 || startIndexes[0] != "0" || startIndexes[1] != "2" {
		t.Errorf("startIndex sequence = %v, want [0 2]", startIndexes)
	}

	first := addrs[0]
	if first.ID != "adpt.1" || first.Street != "Rue Haute" || first.PostalCode != "1000" {
		t.Errorf("first address = %+v", first)
	}
	// GeoJSON coordinates arrive as [lng, lat].
	if first.Location.Latitude != 50.8370 || first.Location.Longitude != 4.3431 {
		t.Errorf("location = %+v, want lat 50.8370 lng 4.3431", first.Location)
	}
	if first.Formatted != "Rue Haute 154, 1000 Bruxelles" {
		t.Errorf("formatted = %q", first.Formatted)
	}
}

func TestFetchAddressesStopsAtMaxPages(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Always a full page, so only maxPages ends the loop.
		fmt.Fprintf(w, `{"features": [%s]}`,
			featureJSON(fmt.Sprintf("adpt.%d", calls), "Rue Haute", "1", "1000", "Bruxelles", 4.34, 50.84),
		)
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL, PageSize: 1, MaxPages: 3})
	addrs, err := client.FetchAddresses(context.Background())
	if err != nil {
		t.Fatalf("FetchAddresses: %v", err)
	}
	if calls != 3 || len(addrs) != 3 {
		t.Errorf("calls = %d, addresses = %d, want 3 and 3", calls, len(addrs))
	}
}

func TestFetchAddressesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "layer unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL})
	if _, err := client.FetchAddresses(context.Background()); err == nil {
		t.Fatal("expected error on 503 response")
	}
}

func TestFetchAddressesSkipsFeaturesWithoutGeometry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"features": [
			{"id": "adpt.bad", "geometry": {"coordinates": []}, "properties": {"PN_NAME_FRE": "Rue X"}},
			%s
		]}`, featureJSON("adpt.good", "Rue Haute", "1", "1000", "Bruxelles", 4.34, 50.84))
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL})
	addrs, err := client.FetchAddresses(context.Background())
	if err != nil {
		t.Fatalf("FetchAddresses: %v", err)
	}
	if len(addrs) != 1 || addrs[0].ID != "adpt.good" {
		t.Errorf("addresses = %+v, want only adpt.good", addrs)
	}
}

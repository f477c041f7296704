package overpass

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchAddressesMapsTags(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotQuery = r.PostFormValue("data")
		fmt.Fprint(w, `{"elements": [
			{"id": 101, "lat": 50.8370, "lon": 4.3431, "tags": {
				"addr:street": "Rue Haute", "addr:housenumber": "154",
				"addr:postcode": "1000", "addr:city": "Bruxelles"
			}}
		]}`)
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL})
	addrs, err := client.FetchAddresses(context.Background())
	if err != nil {
		t.Fatalf("FetchAddresses: %v", err)
	}

	if !strings.Contains(gotQuery, `node["addr:street"]["addr:housenumber"]`) {
		t.Errorf("query missing address filter:\n%s", gotQuery)
	}
	if !strings.Contains(gotQuery, brusselsBBox) {
		t.Errorf("query missing bounding box:\n%s", gotQuery)
	}

	if len(addrs) != 1 {
		t.Fatalf("got %d addresses, want 1", len(addrs))
	}
	a := addrs[0]
	if a.ID != "osm-101" || a.Street != "Rue Haute" || a.Number != "154" {
		t.Errorf("address = %+v", a)
	}
	if a.Formatted != "Rue Haute 154, 1000 Bruxelles" {
		t.Errorf("formatted = %q", a.Formatted)
	}
	if a.Location.Latitude != 50.8370 || a.Location.Longitude != 4.3431 {
		t.Errorf("location = %+v", a.Location)
	}
}

func TestFetchPlacesCategorizesAndSkipsNameless(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"elements": [
			{"id": 1, "lat": 50.84, "lon": 4.35, "tags": {"leisure": "park", "name": "Parc de Bruxelles"}},
			{"id": 2, "lat": 50.85, "lon": 4.36, "tags": {"amenity": "veterinary", "name": "Clinique Vet", "phone": "+32 2 000 00 00"}},
			{"id": 3, "lat": 50.86, "lon": 4.37, "tags": {"amenity": "cafe", "dog": "yes", "name": "Bar à Chiens"}},
			{"id": 4, "lat": 50.87, "lon": 4.38, "tags": {"leisure": "park"}}
		]}`)
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL})
	places, err := client.FetchPlaces(context.Background())
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}

	if len(places) != 3 {
		t.Fatalf("got %d places, want 3 (nameless node dropped)", len(places))
	}

	wantCategories := map[string]string{
		"osm-1": "park",
		"osm-2": "vet",
		"osm-3": "cafe",
	}
	for _, p := range places {
		if want := wantCategories[p.ID]; p.Category != want {
			t.Errorf("place %s category = %s, want %s", p.ID, p.Category, want)
		}
	}
	for _, p := range places {
		if p.ID == "osm-2" && p.Phone != "+32 2 000 00 00" {
			t.Errorf("vet phone = %q", p.Phone)
		}
	}
}

func TestRunReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too busy", http.StatusGatewayTimeout)
	}))
	defer server.Close()

	client := New(server.Client(), Config{BaseURL: server.URL})
	if _, err := client.FetchAddresses(context.Background()); err == nil {
		t.Fatal("expected error on 504 response")
	}
	if _, err := client.FetchPlaces(context.Background()); err == nil {
		t.Fatal("expected error on 504 response")
	}
}

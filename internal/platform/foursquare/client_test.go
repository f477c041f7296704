package foursquare

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchPlacesMapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "fsq-key" {
			t.Errorf("Authorization = %q, want api key", got)
		}
		fsqCategory := r.URL.Query().Get("categories")
		fmt.Fprintf(w, `{"results": [{
			"fsq_id": "fsq-%s",
			"name": "Place %s",
			"website": "https://example.be",
			"location": {"formatted_address": "Rue Haute 1, 1000 Bruxelles"},
			"geocodes": {"main": {"latitude": 50.84, "longitude": 4.35}}
		}]}`, fsqCategory, fsqCategory)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "fsq-key", BaseURL: server.URL})
	got, err := client.FetchPlaces(context.Background())
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}

	if len(got) != len(categorySearches) {
		t.Fatalf("got %d places, want one per category (%d)", len(got), len(categorySearches))
	}

	first := got[0]
	if first.PlaceID != "fsq-16032" || first.Category != "park" {
		t.Errorf("first place = %+v, want the park search result", first)
	}
	if first.Address != "Rue Haute 1, 1000 Bruxelles" || first.Website != "https://example.be" {
		t.Errorf("first place details = %+v", first)
	}
	if first.Location.Latitude != 50.84 || first.Location.Longitude != 4.35 {
		t.Errorf("location = %+v", first.Location)
	}
}

func TestFetchPlacesRetriesThenFails(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "bad", BaseURL: server.URL, MaxRetries: 2})
	if _, err := client.FetchPlaces(context.Background()); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want maxRetries (2)", calls)
	}
}

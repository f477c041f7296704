package places

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchPlacesMergesCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		placeType := r.URL.Query().Get("type")
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key, query = %s", r.URL.RawQuery)
		}
		fmt.Fprintf(w, `{
			"status": "OK",
			"results": [{
				"place_id": "pid-%s",
				"name": "Spot %s",
				"vicinity": "Rue Haute 1, Bruxelles",
				"rating": 4.5,
				"geometry": {"location": {"lat": 50.84, "lng": 4.35}}
			}]
		}`, placeType, placeType)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "test-key", BaseURL: server.URL})
	got, err := client.FetchPlaces(context.Background())
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}

	if len(got) != len(categorySearches) {
		t.Fatalf("got %d places, want one per category (%d)", len(got), len(categorySearches))
	}

	byCategory := make(map[string]int)
	for _, p := range got {
		byCategory[p.Category]++
	}
	for _, search := range categorySearches {
		if byCategory[search.category] != 1 {
			t.Errorf("category %s count = %d, want 1", search.category, byCategory[search.category])
		}
	}

	first := got[0]
	if first.PlaceID != "pid-park" || first.Name != "Spot park" || first.Rating != 4.5 {
		t.Errorf("first place = %+v", first)
	}
	if first.Location.Latitude != 50.84 || first.Location.Longitude != 4.35 {
		t.Errorf("location = %+v", first.Location)
	}
}

func TestFetchPlacesRetriesServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "k", BaseURL: server.URL, MaxRetries: 3})
	got, err := client.FetchPlaces(context.Background())
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d places, want 0", len(got))
	}
	if calls < 2 {
		t.Errorf("server saw %d calls, want a retry after the 500", calls)
	}
}

func TestFetchPlacesBreakerOpensOnQueryLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "OVER_QUERY_LIMIT", "results": []}`)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "k", BaseURL: server.URL, MaxRetries: 5, BreakerMax: 2})
	_, err := client.FetchPlaces(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}

	// The breaker stays open for subsequent fetches until a success resets it.
	_, err = client.FetchPlaces(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second fetch err = %v, want ErrCircuitOpen", err)
	}
}

func TestFetchPlacesBreakerCountsTooManyRequests(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "k", BaseURL: server.URL, MaxRetries: 5, BreakerMax: 3})
	_, err := client.FetchPlaces(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls before the breaker opened, want 3", calls)
	}
}

func TestFetchPlacesFatalStatusFailsWithoutRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status": "REQUEST_DENIED", "error_message": "bad key", "results": []}`)
	}))
	defer server.Close()

	client := New(server.Client(), Config{APIKey: "bad", BaseURL: server.URL, MaxRetries: 5})
	_, err := client.FetchPlaces(context.Background())
	if err == nil {
		t.Fatal("expected error for REQUEST_DENIED")
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want no retry on a fatal status", calls)
	}
}

package util

import (
	"testing"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func TestHashRecordsIgnoresOrder(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := model.Record{ID: "a", Location: model.GeoPoint{Latitude: 50.84, Longitude: 4.35}, LastUpdated: when, KeyField: "Rue Haute 1"}
	b := model.Record{ID: "b", Location: model.GeoPoint{Latitude: 50.85, Longitude: 4.36}, LastUpdated: when, KeyField: "Rue Blaes 2"}

	forward := HashRecords([]model.Record{a, b})
	reversed := HashRecords([]model.Record{b, a})
	if forward != reversed {
		t.Errorf("hash depends on record order: %s != %s", forward, reversed)
	}
}

func TestHashRecordsNormalizesCaseAndWhitespace(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := model.Record{ID: "Abc", LastUpdated: when, KeyField: " Rue Haute "}
	b := model.Record{ID: "abc", LastUpdated: when, KeyField: "rue haute"}

	if HashRecords([]model.Record{a}) != HashRecords([]model.Record{b}) {
		t.Error("hash should normalize id and key field case and padding")
	}
}

func TestHashRecordsDetectsContentChange(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := model.Record{ID: "a", Location: model.GeoPoint{Latitude: 50.84, Longitude: 4.35}, LastUpdated: when}
	moved := a
	moved.Location.Latitude = 50.85

	if HashRecords([]model.Record{a}) == HashRecords([]model.Record{moved}) {
		t.Error("moving a record must change the dataset hash")
	}
}

func TestHashStringStable(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := HashString("hello"); got != want {
		t.Errorf("HashString(hello) = %s, want %s", got, want)
	}
}

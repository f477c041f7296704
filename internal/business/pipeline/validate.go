package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// Brussels-Capital Region bounding box. Records outside it are expected from
// region-wide providers and dropped without a warning.
const (
	brusselsMinLat = 50.76
	brusselsMaxLat = 50.92
	brusselsMinLng = 4.24
	brusselsMaxLng = 4.48
)

// validateRecords applies the pipeline's field and geo rules. Records failing
// a required-field or world-coordinate check are dropped with a warning;
// records outside the Brussels bounding box are dropped silently. The
// returned warnings feed the version metadata.
func validateRecords(records []model.Record, rules model.ValidationRules, logger *slog.Logger) ([]model.Record, []string) {
	valid := make([]model.Record, 0, len(records))
	var warnings []string

	for _, r := range records {
		if err := checkRequiredFields(r, rules.RequiredFields); err != nil {
			warnings = append(warnings, err.Error())
			logger.Warn("record dropped by validation", slog.String("record", r.ID), slog.String("reason", err.Error()))
			continue
		}

		if rules.GeoValidation {
			lat, lng := r.Location.Latitude, r.Location.Longitude
			if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
				err := &ValidationError{RecordID: r.ID, Field: "location", Reason: "coordinates outside world bounds"}
				warnings = append(warnings, err.Error())
				logger.Warn("record dropped by validation", slog.String("record", r.ID), slog.String("reason", err.Reason))
				continue
			}
			if lat < brusselsMinLat || lat > brusselsMaxLat || lng < brusselsMinLng || lng > brusselsMaxLng {
				// Outside the service area, not anomalous.
				continue
			}
		}

		valid = append(valid, r)
	}

	return valid, warnings
}

func checkRequiredFields(r model.Record, required []string) *ValidationError {
	for _, field := range required {
		if !recordHasField(r, field) {
			return &ValidationError{RecordID: r.ID, Field: field, Reason: "required field missing"}
		}
	}
	return nil
}

func recordHasField(r model.Record, field string) bool {
	switch field {
	case "id":
		return r.ID != ""
	case "location":
		return r.Location != model.GeoPoint{}
	case "lastUpdated":
		return !r.LastUpdated.IsZero()
	case "street":
		return r.Address != nil && r.Address.Street != ""
	case "municipality":
		return r.Address != nil && r.Address.Municipality != ""
	case "postalCode":
		return r.Address != nil && r.Address.PostalCode != ""
	case "name":
		return r.DogPlace != nil && r.DogPlace.Name != ""
	case "category":
		return r.DogPlace != nil && r.DogPlace.Category != ""
	default:
		// Unknown rule names fail closed so config typos surface in warnings.
		return false
	}
}

// dedupeRecords keeps the first record per identity key. The key is the
// provider place id when present, else the coordinates rounded to ~11cm.
func dedupeRecords(records []model.Record) []model.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		key := r.PlaceID
		if key == "" {
			key = fmt.Sprintf("%.6f,%.6f", r.Location.Latitude, r.Location.Longitude)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

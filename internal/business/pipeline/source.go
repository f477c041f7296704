package pipeline

import (
	"context"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// AddressFetcher is implemented by adapters that can supply street addresses.
type AddressFetcher interface {
	FetchAddresses(ctx context.Context) ([]model.AddressData, error)
}

// PlaceFetcher is implemented by adapters that can supply points of interest.
type PlaceFetcher interface {
	FetchPlaces(ctx context.Context) ([]model.DogPlaceData, error)
}

// Registry maps providers to their adapters at construction time. An adapter
// advertises what it can fetch through the capability interfaces above; a
// provider asked for a data type it does not support is an invalid-type
// acquisition error rather than a runtime import failure.
type Registry struct {
	adapters map[model.Provider]any
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.Provider]any)}
}

// Register binds an adapter to a provider name. Later registrations replace
// earlier ones.
func (r *Registry) Register(p model.Provider, adapter any) {
	r.adapters[p] = adapter
}

// Providers lists every registered provider.
func (r *Registry) Providers() []model.Provider {
	out := make([]model.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}

// Fetch dispatches to the provider's adapter for the requested data type.
func (r *Registry) Fetch(ctx context.Context, p model.Provider, dataType model.DataType) ([]model.Record, error) {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, &AcquisitionError{Provider: p, Code: CodeUnsupportedSource}
	}

	switch dataType {
	case model.DataTypeAddresses:
		fetcher, ok := adapter.(AddressFetcher)
		if !ok {
			return nil, &AcquisitionError{Provider: p, Code: CodeInvalidType}
		}
		addrs, err := fetcher.FetchAddresses(ctx)
		if err != nil {
			return nil, &AcquisitionError{Provider: p, Code: CodeRequestFailed, Retryable: true, Err: err}
		}
		return model.AddressRecords(addrs), nil
	case model.DataTypeDogPlaces:
		fetcher, ok := adapter.(PlaceFetcher)
		if !ok {
			return nil, &AcquisitionError{Provider: p, Code: CodeInvalidType}
		}
		places, err := fetcher.FetchPlaces(ctx)
		if err != nil {
			return nil, &AcquisitionError{Provider: p, Code: CodeRequestFailed, Retryable: true, Err: err}
		}
		return model.DogPlaceRecords(places), nil
	default:
		return nil, &AcquisitionError{Provider: p, Code: CodeInvalidType}
	}
}

// checkQuota resets the window when due and reports whether the source still
// has budget. It returns the usage fraction after the check.
func checkQuota(src *model.Source, now time.Time) (float64, error) {
	q := &src.Quota
	if !q.ResetAt.IsZero() && !now.Before(q.ResetAt) {
		q.CurrentUsage = 0
		q.ResetAt = nextQuotaReset(now)
	}
	if q.ResetAt.IsZero() {
		q.ResetAt = nextQuotaReset(now)
	}

	if q.DailyLimit > 0 && q.CurrentUsage >= q.DailyLimit {
		return 1, &QuotaExceededError{
			Provider: src.Provider,
			Limit:    q.DailyLimit,
			Usage:    q.CurrentUsage,
			ResetAt:  q.ResetAt,
		}
	}
	if q.DailyLimit <= 0 {
		return 0, nil
	}
	return float64(q.CurrentUsage) / float64(q.DailyLimit), nil
}

func nextQuotaReset(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return next.AddDate(0, 0, 1)
}

// recordSourceResult folds one acquisition attempt into the source's
// reliability record and recomputes its score.
func recordSourceResult(src *model.Source, success bool, elapsed time.Duration, now time.Time) {
	rel := &src.Reliability
	rel.Attempts++

	// Running averages over all attempts.
	n := float64(rel.Attempts)
	rel.AvgResponseMs += (float64(elapsed.Milliseconds()) - rel.AvgResponseMs) / n

	if success {
		rel.ConsecutiveFailures = 0
		rel.UptimePercent += (100 - rel.UptimePercent) / n
		rel.ErrorRate += (0 - rel.ErrorRate) / n
	} else {
		rel.ConsecutiveFailures++
		rel.LastFailureAt = now
		rel.UptimePercent += (0 - rel.UptimePercent) / n
		rel.ErrorRate += (1 - rel.ErrorRate) / n
	}

	rel.Score = reliabilityScore(*rel, now)
}

// reliabilityScore blends uptime, inverse error rate and recency of the last
// failure: 0.4*uptime + 0.3*max(0, 100-errorRate*10) + 0.3*recency. The
// recency component climbs 20 points per clean day, so a source is fully
// rehabilitated five days after its last failure.
func reliabilityScore(rel model.SourceReliability, now time.Time) float64 {
	errComponent := 100 - rel.ErrorRate*100*10
	if errComponent < 0 {
		errComponent = 0
	}

	recency := 100.0
	if !rel.LastFailureAt.IsZero() {
		days := now.Sub(rel.LastFailureAt).Hours() / 24
		recency = days * 20
		if recency > 100 {
			recency = 100
		}
		if recency < 0 {
			recency = 0
		}
	}

	return 0.4*rel.UptimePercent + 0.3*errComponent + 0.3*recency
}

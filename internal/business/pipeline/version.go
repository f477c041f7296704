package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dogspots-bxl/data-importer/pkg/model"
	"github.com/dogspots-bxl/data-importer/pkg/util"
)

// VersionService fingerprints fetched datasets and decides whether a new
// fetch differs from the last persisted one. Versions live in memory for the
// process lifetime; CleanupOldVersions bounds growth.
type VersionService struct {
	mu       sync.RWMutex
	versions map[string]model.DataVersion
}

func NewVersionService() *VersionService {
	return &VersionService{versions: make(map[string]model.DataVersion)}
}

// CreateVersion hashes the dataset and stores a version record for it.
func (s *VersionService) CreateVersion(dataType model.DataType, source model.Provider, records []model.Record, meta model.VersionMetadata) model.DataVersion {
	version := model.DataVersion{
		ID:          uuid.NewString(),
		DataType:    dataType,
		Source:      source,
		Hash:        util.HashRecords(records),
		RecordCount: len(records),
		CreatedAt:   time.Now().UTC(),
		Metadata:    meta,
	}

	s.mu.Lock()
	s.versions[version.ID] = version
	s.mu.Unlock()
	return version
}

// CompareVersions decides whether the current version's data needs persisting
// given the previous one. A nil previous always needs an update.
func (s *VersionService) CompareVersions(previous *model.DataVersion, current model.DataVersion) model.VersionComparison {
	if previous == nil {
		return model.VersionComparison{
			NeedsUpdate:  true,
			Reason:       model.ReasonNoPreviousVersion,
			RecordsAdded: current.RecordCount,
		}
	}
	if previous.Hash == current.Hash {
		return model.VersionComparison{NeedsUpdate: false, Reason: model.ReasonIdenticalHash}
	}

	delta := current.RecordCount - previous.RecordCount
	cmp := model.VersionComparison{NeedsUpdate: true, Reason: model.ReasonDataChanged}
	switch {
	case delta > 0:
		cmp.RecordsAdded = delta
		cmp.RecordsModified = delta
	case delta < 0:
		cmp.RecordsRemoved = -delta
		cmp.RecordsModified = -delta
	}
	return cmp
}

// LatestVersion returns the newest stored version for (type, source), or nil.
func (s *VersionService) LatestVersion(dataType model.DataType, source model.Provider) *model.DataVersion {
	history := s.VersionHistory(dataType, source, 1)
	if len(history) == 0 {
		return nil
	}
	return &history[0]
}

// VersionHistory returns up to limit versions for (type, source), newest
// first. limit <= 0 returns everything.
func (s *VersionService) VersionHistory(dataType model.DataType, source model.Provider, limit int) []model.DataVersion {
	s.mu.RLock()
	var matches []model.DataVersion
	for _, v := range s.versions {
		if v.DataType == dataType && v.Source == source {
			matches = append(matches, v)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// CleanupOldVersions keeps the keepCount most recent versions per
// (type, source) pair and discards the rest. Idempotent.
func (s *VersionService) CleanupOldVersions(keepCount int) int {
	if keepCount < 1 {
		keepCount = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[[2]string][]model.DataVersion)
	for _, v := range s.versions {
		key := [2]string{string(v.DataType), string(v.Source)}
		groups[key] = append(groups[key], v)
	}

	removed := 0
	for _, group := range groups {
		if len(group) <= keepCount {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].CreatedAt.After(group[j].CreatedAt) })
		for _, stale := range group[keepCount:] {
			delete(s.versions, stale.ID)
			removed++
		}
	}
	return removed
}

const freshnessWindow = 30 * 24 * time.Hour

// CalculateQualityMetrics scores a dataset on completeness (identity fields
// present), accuracy (coordinates inside the world) and freshness (mean age
// against a 30-day window). An empty dataset scores zero across the board.
func (s *VersionService) CalculateQualityMetrics(records []model.Record) model.QualityMetrics {
	if len(records) == 0 {
		return model.QualityMetrics{}
	}

	now := time.Now().UTC()
	var completeSum, accurate int
	var ageSum time.Duration

	for _, r := range records {
		fields := 0
		if r.ID != "" {
			fields++
		}
		if r.Location != (model.GeoPoint{}) {
			fields++
		}
		if !r.LastUpdated.IsZero() {
			fields++
		}
		completeSum += fields

		if r.Location.Latitude >= -90 && r.Location.Latitude <= 90 &&
			r.Location.Longitude >= -180 && r.Location.Longitude <= 180 {
			accurate++
		}

		if !r.LastUpdated.IsZero() {
			if age := now.Sub(r.LastUpdated); age > 0 {
				ageSum += age
			}
		} else {
			ageSum += freshnessWindow
		}
	}

	n := float64(len(records))
	completeness := float64(completeSum) / (3 * n) * 100
	accuracy := float64(accurate) / n * 100

	avgAge := time.Duration(float64(ageSum) / n)
	freshness := (1 - float64(avgAge)/float64(freshnessWindow)) * 100
	if freshness < 0 {
		freshness = 0
	}

	return model.QualityMetrics{
		Completeness: completeness,
		Accuracy:     accuracy,
		Freshness:    freshness,
		Overall:      (completeness + accuracy + freshness) / 3,
	}
}

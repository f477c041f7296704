package pipeline

import (
	"fmt"
	"time"
)

const (
	FrequencyBiannual = "biannual"
	FrequencyWeekly   = "weekly"
)

// UpdateStrategy decides when a pipeline is due. Implementations are pure
// over the supplied instants so tests can pin the clock.
type UpdateStrategy interface {
	// ShouldUpdate reports whether a trigger instant lies in (lastUpdate, now].
	ShouldUpdate(now, lastUpdate time.Time) bool
	// NextUpdate returns the first trigger instant strictly after now.
	NextUpdate(now time.Time) time.Time
}

// NewStrategy maps a frequency string to its strategy. An unknown frequency
// is a configuration error and fails pipeline initialization.
func NewStrategy(frequency string) (UpdateStrategy, error) {
	switch frequency {
	case FrequencyBiannual:
		return biannualStrategy{}, nil
	case FrequencyWeekly:
		return weeklyStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown update frequency %q", frequency)
	}
}

// biannualStrategy triggers on January 15 and July 15 at 02:00 UTC.
type biannualStrategy struct{}

func (biannualStrategy) triggersFor(year int) [2]time.Time {
	return [2]time.Time{
		time.Date(year, time.January, 15, 2, 0, 0, 0, time.UTC),
		time.Date(year, time.July, 15, 2, 0, 0, 0, time.UTC),
	}
}

func (s biannualStrategy) ShouldUpdate(now, lastUpdate time.Time) bool {
	if lastUpdate.IsZero() {
		return true
	}
	for year := lastUpdate.Year(); year <= now.Year(); year++ {
		for _, trigger := range s.triggersFor(year) {
			if trigger.After(lastUpdate) && !trigger.After(now) {
				return true
			}
		}
	}
	return false
}

func (s biannualStrategy) NextUpdate(now time.Time) time.Time {
	for _, trigger := range s.triggersFor(now.Year()) {
		if trigger.After(now) {
			return trigger
		}
	}
	return s.triggersFor(now.Year() + 1)[0]
}

// weeklyStrategy triggers every Sunday at 02:00 in the pipeline's local zone.
type weeklyStrategy struct{}

func (weeklyStrategy) ShouldUpdate(now, lastUpdate time.Time) bool {
	if lastUpdate.IsZero() {
		return true
	}
	// Due if the most recent Sunday-02:00 trigger falls after lastUpdate.
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
	candidate = candidate.AddDate(0, 0, -int(now.Weekday()))
	if candidate.After(now) {
		candidate = candidate.AddDate(0, 0, -7)
	}
	return candidate.After(lastUpdate)
}

func (weeklyStrategy) NextUpdate(now time.Time) time.Time {
	daysUntilSunday := (7 - int(now.Weekday())) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
	candidate = candidate.AddDate(0, 0, daysUntilSunday)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

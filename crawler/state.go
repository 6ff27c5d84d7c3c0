package crawler

import (
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
)

// state is owned by the Run goroutine; other goroutines only see snapshots.
type state struct {
	phase    models.Phase
	page     int
	target   int
	failures int
	paused   bool

	records    []models.ListingRecord
	seen       map[string]struct{}
	pages      int
	failed     int
	duplicates int
}

func newState(target int) *state {
	return &state{
		phase:  models.PhaseIdle,
		page:   1,
		target: target,
		seen:   make(map[string]struct{}),
	}
}

func (s *state) snapshot() models.CrawlSnapshot {
	return models.CrawlSnapshot{
		Phase:               s.phase,
		Page:                s.page,
		Collected:           len(s.records),
		Target:              s.target,
		ConsecutiveFailures: s.failures,
		Paused:              s.paused,
		UpdatedAt:           time.Now(),
	}
}

func (s *state) report(outcome models.Outcome, reason models.StopReason, output string, d time.Duration) *models.Report {
	return &models.Report{
		Outcome:    outcome,
		StopReason: reason,
		Pages:      s.pages,
		Collected:  len(s.records),
		Target:     s.target,
		Failures:   s.failed,
		Duplicates: s.duplicates,
		Output:     output,
		Duration:   d,
		FieldStats: fieldStats(s.records),
	}
}

// fieldStats counts, per field, the records that resolved it.
func fieldStats(records []models.ListingRecord) models.FieldStats {
	stats := make(models.FieldStats, len(models.Fields))
	for _, f := range models.Fields {
		stats[f] = 0
	}
	for _, r := range records {
		for _, f := range models.Fields {
			if r.Has(f) {
				stats[f]++
			}
		}
	}
	return stats
}

package engine

import (
	"math"
	"sort"
	"time"

	"github.com/tendhq/tend/internal/store"
)

// Pattern is the rhythm inferred from a friend's completed weaves. It
// is always derived fresh from history, never stored as its own entity;
// only the tolerance window it yields is persisted on the friend.
type Pattern struct {
	AverageIntervalDays float64  `json:"average_interval_days"`
	Consistency         float64  `json:"consistency"` // [0,1], 1 = perfectly regular
	SampleSize          int      `json:"sample_size"`
	PreferredCategories []string `json:"preferred_categories"`
	PreferredWeekday    int      `json:"preferred_weekday"` // time.Weekday ordinal, -1 unknown
	Reliable            bool     `json:"reliable"`
}

// AnalyzePattern infers a Pattern from completed weaves ordered oldest
// first. Empty history yields an unreliable zero pattern, never an
// error.
func AnalyzePattern(cfg Config, history []store.FriendWeave) Pattern {
	p := Pattern{
		SampleSize:       len(history),
		PreferredWeekday: -1,
	}
	if len(history) == 0 {
		return p
	}

	// Gaps between consecutive weaves, in days.
	var gaps []float64
	for i := 1; i < len(history); i++ {
		gap := float64(history[i].OccurredAt-history[i-1].OccurredAt) / msPerDay
		gaps = append(gaps, gap)
	}

	if len(gaps) > 0 {
		sum := 0.0
		for _, g := range gaps {
			sum += g
		}
		p.AverageIntervalDays = sum / float64(len(gaps))
	}

	// Consistency is the inverse of gap variability: 1/(1+cv). A single
	// gap carries no variability signal, so it stays at zero.
	if len(gaps) >= 2 && p.AverageIntervalDays > 0 {
		variance := 0.0
		for _, g := range gaps {
			d := g - p.AverageIntervalDays
			variance += d * d
		}
		variance /= float64(len(gaps))
		cv := math.Sqrt(variance) / p.AverageIntervalDays
		p.Consistency = 1 / (1 + cv)
	}

	p.PreferredCategories = rankCategories(history)
	if len(history) >= cfg.WeekdayMinSamples {
		p.PreferredWeekday = modalWeekday(history)
	}

	p.Reliable = p.SampleSize >= cfg.PatternMinSamples &&
		p.Consistency >= cfg.PatternMinConsistency
	return p
}

// rankCategories orders the categories seen in history by frequency,
// breaking ties in favor of the most recent occurrence.
func rankCategories(history []store.FriendWeave) []string {
	counts := make(map[string]int)
	lastSeen := make(map[string]int64)
	for _, w := range history {
		if w.Category == "" {
			continue
		}
		counts[w.Category]++
		if w.OccurredAt > lastSeen[w.Category] {
			lastSeen[w.Category] = w.OccurredAt
		}
	}
	if len(counts) == 0 {
		return nil
	}

	ranked := make([]string, 0, len(counts))
	for c := range counts {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if lastSeen[a] != lastSeen[b] {
			return lastSeen[a] > lastSeen[b]
		}
		return a < b
	})
	return ranked
}

// modalWeekday returns the most common weekday across history, ties
// broken by the most recent occurrence. Weekdays are taken in UTC.
func modalWeekday(history []store.FriendWeave) int {
	var counts [7]int
	var lastSeen [7]int64
	for _, w := range history {
		d := time.UnixMilli(w.OccurredAt).UTC().Weekday()
		counts[d]++
		if w.OccurredAt > lastSeen[d] {
			lastSeen[d] = w.OccurredAt
		}
	}

	best := 0
	for d := 1; d < 7; d++ {
		if counts[d] > counts[best] ||
			(counts[d] == counts[best] && lastSeen[d] > lastSeen[best]) {
			best = d
		}
	}
	return best
}

// ToleranceWindow derives a friend's working grace window from their
// pattern: proportional to the typical gap, bounded to tier-scaled
// limits. Unreliable patterns fall back to the tier default.
func ToleranceWindow(cfg Config, tierName string, p Pattern) float64 {
	def := cfg.TierOf(tierName).ToleranceDays
	if !p.Reliable || p.AverageIntervalDays <= 0 {
		return def
	}

	window := cfg.ToleranceScale * p.AverageIntervalDays
	if floor := cfg.ToleranceFloorMul * def; window < floor {
		return floor
	}
	if ceil := cfg.ToleranceCeilMul * def; window > ceil {
		return ceil
	}
	return window
}

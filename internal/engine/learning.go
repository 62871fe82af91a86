package engine

import (
	"sort"

	"github.com/tendhq/tend/internal/store"
)

// Reciprocity summarizes who keeps a friendship going. Balance runs
// from 0 (you always initiate) to 1 (they always do); mutual weaves
// count half toward their side.
type Reciprocity struct {
	Balance    float64 `json:"balance"`
	Samples    int     `json:"samples"`
	Multiplier float64 `json:"multiplier"`
}

// ReciprocityFrom folds initiator tallies into a balance and a scoring
// multiplier. The multiplier stays neutral until enough weaves carry a
// known initiator, so sparse data cannot skew scores.
func ReciprocityFrom(cfg Config, self, other, mutual int) Reciprocity {
	r := Reciprocity{Balance: 0.5, Multiplier: 1.0}
	r.Samples = self + other + mutual
	if r.Samples == 0 {
		return r
	}

	r.Balance = (float64(other) + 0.5*float64(mutual)) / float64(r.Samples)
	if r.Samples < cfg.ReciprocityGate {
		return r
	}

	m := 0.9 + 0.2*r.Balance
	if m < 0.9 {
		m = 0.9
	}
	if m > 1.1 {
		m = 1.1
	}
	r.Multiplier = m
	return r
}

// outcomeFromVibe maps a 1..5 rating onto the [0,1] outcome scale.
func outcomeFromVibe(vibe int) float64 {
	return float64(vibe-1) / 4
}

// nextCategoryStat folds one rated weave into the running outcome EMA
// for its category. The first rating seeds the average directly.
func nextCategoryStat(cfg Config, prev *store.CategoryStat, category string, vibe int) store.CategoryStatUpdate {
	outcome := outcomeFromVibe(vibe)
	if prev == nil {
		return store.CategoryStatUpdate{Category: category, OutcomeEMA: outcome, RatedCount: 1}
	}
	return store.CategoryStatUpdate{
		Category:   category,
		OutcomeEMA: cfg.OutcomeAlpha*outcome + (1-cfg.OutcomeAlpha)*prev.OutcomeEMA,
		RatedCount: prev.RatedCount + 1,
	}
}

// EffectivenessMultiplier turns a category's outcome history into a
// scoring multiplier. Neutral until the category has enough ratings.
func EffectivenessMultiplier(cfg Config, stat *store.CategoryStat) float64 {
	if stat == nil || stat.RatedCount < cfg.EffectivenessGate {
		return 1.0
	}
	m := 0.7 + 0.6*stat.OutcomeEMA
	if m < 0.85 {
		return 0.85
	}
	if m > 1.2 {
		return 1.2
	}
	return m
}

// Suggestion is one ranked reconnection idea for a friend.
type Suggestion struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// SuggestCategories ranks every known category for a friend by how well
// it suits their archetype and how past weaves of that category landed,
// with a bump for the categories their pattern already prefers.
func SuggestCategories(cfg Config, f *store.Friend, p Pattern, stats []store.CategoryStat) []Suggestion {
	byCategory := make(map[string]*store.CategoryStat, len(stats))
	for i := range stats {
		byCategory[stats[i].Category] = &stats[i]
	}

	preferredRank := make(map[string]int)
	for i, c := range p.PreferredCategories {
		if i >= 3 {
			break
		}
		preferredRank[c] = i
	}

	var suggestions []Suggestion
	for category := range cfg.CategoryPoints {
		affinity := cfg.AffinityFactor(f.Archetype, category)
		effectiveness := EffectivenessMultiplier(cfg, byCategory[category])
		score := affinity * effectiveness

		reason := "worth a try"
		if rank, ok := preferredRank[category]; ok {
			score += 0.15 - 0.05*float64(rank)
			reason = "part of your usual rhythm"
		} else if effectiveness > 1.05 {
			reason = "has landed well before"
		} else if affinity > 1.05 {
			reason = "suits who they are"
		}

		suggestions = append(suggestions, Suggestion{
			Category: category,
			Score:    score,
			Reason:   reason,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Category < suggestions[j].Category
	})
	return suggestions
}

package engine

import "github.com/tendhq/tend/internal/store"

// TierParams holds the per-tier constants of the health model.
type TierParams struct {
	DecayPerDay        float64 // base score loss per day at resilience 1.0
	Weight             float64 // contribution to network-wide averages
	ToleranceDays      float64 // default grace window before decay accelerates
	AttentionThreshold float64 // score at which a friend needs attention
}

// DurationBand maps a weave duration to a point multiplier. Bands are
// checked in order; UpToMin 0 means unbounded.
type DurationBand struct {
	UpToMin int
	Factor  float64
}

// Config carries every tunable of the health model. It is pure data:
// the scoring, decay, and forecasting functions read it, nothing writes
// it after construction.
type Config struct {
	Tiers map[string]TierParams

	CategoryPoints map[string]float64
	KindPoints     map[string]float64 // legacy channel types

	DurationBands   []DurationBand
	VibeMultipliers [6]float64 // indexed by vibe, 0 = unrated

	GroupDilutionFloor    float64
	ImportanceMultipliers map[string]float64

	// archetype -> category -> multiplier; missing pairs are neutral.
	Affinity map[string]map[string]float64

	NotesUplift      float64
	ReflectionUplift float64

	SameDayFactor      float64 // gap under a day since the last weave
	ReconnectionFactor float64 // gap beyond twice the tolerance window

	IntentionBonus float64
	MomentumBoost  float64

	MomentumInitial     float64
	MomentumDecayPerDay float64

	GraceRate   float64 // decay rate multiplier inside the tolerance window
	OverdueRate float64 // and beyond it

	DormancyScoreThreshold float64
	DormancyInactivityDays float64

	ResilienceMin  float64
	ResilienceMax  float64
	ResilienceGain float64 // per weave rated 4+
	ResilienceLoss float64 // per weave rated 2-
	ResilienceGate int     // rated weaves before resilience moves

	ReciprocityGate   int // known-initiator weaves before the multiplier engages
	EffectivenessGate int // rated weaves per category before the multiplier engages
	OutcomeAlpha      float64

	// Window bounds as multiples of the tier default.
	ToleranceScale    float64
	ToleranceFloorMul float64
	ToleranceCeilMul  float64

	PatternMinSamples     int
	PatternMinConsistency float64
	WeekdayMinSamples     int

	RecomputeEvery      int // completed weaves between pattern recomputes
	ForecastHorizonDays int
}

// DefaultConfig returns the canonical model constants.
func DefaultConfig() Config {
	return Config{
		Tiers: map[string]TierParams{
			store.TierInnerCircle:  {DecayPerDay: 1.5, Weight: 3, ToleranceDays: 7, AttentionThreshold: 50},
			store.TierCloseFriends: {DecayPerDay: 1.0, Weight: 2, ToleranceDays: 14, AttentionThreshold: 40},
			store.TierCommunity:    {DecayPerDay: 0.6, Weight: 1, ToleranceDays: 21, AttentionThreshold: 30},
		},

		CategoryPoints: map[string]float64{
			"deep_talk":   20,
			"celebration": 18,
			"activity":    15,
			"meal":        12,
			"hangout":     12,
			"support":     12,
			"call":        10,
			"message":     5,
		},
		KindPoints: map[string]float64{
			"meetup": 14,
			"letter": 12,
			"call":   10,
			"video":  8,
			"text":   4,
		},

		DurationBands: []DurationBand{
			{UpToMin: 15, Factor: 0.7},
			{UpToMin: 60, Factor: 1.0},
			{UpToMin: 180, Factor: 1.3},
			{UpToMin: 0, Factor: 1.5},
		},
		VibeMultipliers: [6]float64{1.0, 0.7, 0.85, 1.0, 1.15, 1.3},

		GroupDilutionFloor: 0.4,
		ImportanceMultipliers: map[string]float64{
			"minor":     1.0,
			"notable":   1.15,
			"major":     1.3,
			"milestone": 1.5,
		},

		Affinity: map[string]map[string]float64{
			"confidant": {
				"deep_talk": 1.25,
				"support":   1.2,
				"call":      1.1,
				"hangout":   0.95,
			},
			"adventurer": {
				"activity":  1.25,
				"hangout":   1.1,
				"deep_talk": 0.9,
			},
			"thinker": {
				"deep_talk": 1.2,
				"message":   1.1,
				"activity":  0.9,
			},
			"neighbor": {
				"hangout": 1.15,
				"meal":    1.15,
				"call":    0.9,
			},
			"kindred": {
				"celebration": 1.2,
				"deep_talk":   1.1,
				"meal":        1.1,
			},
		},

		NotesUplift:      2.0,
		ReflectionUplift: 3.0,

		SameDayFactor:      0.9,
		ReconnectionFactor: 1.25,

		IntentionBonus: 1.15,
		MomentumBoost:  1.10,

		MomentumInitial:     15,
		MomentumDecayPerDay: 5,

		GraceRate:   0.5,
		OverdueRate: 1.5,

		DormancyScoreThreshold: 25,
		DormancyInactivityDays: 90,

		ResilienceMin:  0.8,
		ResilienceMax:  1.5,
		ResilienceGain: 0.008,
		ResilienceLoss: 0.005,
		ResilienceGate: 5,

		ReciprocityGate:   5,
		EffectivenessGate: 3,
		OutcomeAlpha:      0.3,

		ToleranceScale:    1.25,
		ToleranceFloorMul: 0.5,
		ToleranceCeilMul:  2.5,

		PatternMinSamples:     5,
		PatternMinConsistency: 0.3,
		WeekdayMinSamples:     3,

		RecomputeEvery:      5,
		ForecastHorizonDays: 365,
	}
}

// TierOf returns the parameters for a tier, falling back to the middle
// tier for anything unknown. Tier names are validated at the API edge,
// so the fallback only guards corrupt data.
func (c Config) TierOf(name string) TierParams {
	if p, ok := c.Tiers[name]; ok {
		return p
	}
	return c.Tiers[store.TierCloseFriends]
}

// BasePoints resolves a weave's base score from its category, falling
// back to the legacy kind. Zero means neither is known.
func (c Config) BasePoints(category, kind string) float64 {
	if p, ok := c.CategoryPoints[category]; ok {
		return p
	}
	if p, ok := c.KindPoints[kind]; ok {
		return p
	}
	return 0
}

// DurationFactor returns the multiplier for a weave duration. Zero
// minutes means the duration was not recorded and scores neutrally.
func (c Config) DurationFactor(minutes int) float64 {
	if minutes <= 0 {
		return 1.0
	}
	for _, b := range c.DurationBands {
		if b.UpToMin > 0 && minutes < b.UpToMin {
			return b.Factor
		}
	}
	return c.DurationBands[len(c.DurationBands)-1].Factor
}

// VibeFactor returns the multiplier for a vibe rating. Out-of-range
// values score neutrally.
func (c Config) VibeFactor(vibe int) float64 {
	if vibe < 0 || vibe >= len(c.VibeMultipliers) {
		return 1.0
	}
	return c.VibeMultipliers[vibe]
}

// ImportanceFactor returns the multiplier for an importance label.
// Empty or unknown labels score neutrally.
func (c Config) ImportanceFactor(importance string) float64 {
	if m, ok := c.ImportanceMultipliers[importance]; ok {
		return m
	}
	return 1.0
}

// AffinityFactor returns how well a category suits an archetype.
// Unknown pairs are neutral.
func (c Config) AffinityFactor(archetype, category string) float64 {
	if byCat, ok := c.Affinity[archetype]; ok {
		if m, ok := byCat[category]; ok {
			return m
		}
	}
	return 1.0
}

// KnownCategory reports whether the category is in the scoring table.
func (c Config) KnownCategory(category string) bool {
	_, ok := c.CategoryPoints[category]
	return ok
}

// KnownKind reports whether the legacy kind is in the scoring table.
func (c Config) KnownKind(kind string) bool {
	_, ok := c.KindPoints[kind]
	return ok
}

package engine

import (
	"time"

	"github.com/tendhq/tend/internal/store"
)

const msPerDay = 24 * 60 * 60 * 1000

// daysSince converts the gap between a unix-ms timestamp and now into
// fractional days. Negative when the timestamp is in the future.
func daysSince(ms int64, now time.Time) float64 {
	return float64(now.UnixMilli()-ms) / msPerDay
}

// clampScore bounds a score to the [0, 100] scale.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// toleranceDays returns the friend's working tolerance window: the
// learned value when one has been persisted, else the tier default.
func toleranceDays(cfg Config, f *store.Friend) float64 {
	if f.ToleranceWindowDays != nil && *f.ToleranceWindowDays > 0 {
		return *f.ToleranceWindowDays
	}
	return cfg.TierOf(f.Tier).ToleranceDays
}

// decayOver integrates score loss across elapsed days. Decay runs at
// half pace inside the tolerance window and accelerates once the gap
// outgrows it, so the curve is continuous and piecewise linear.
func decayOver(cfg Config, tier TierParams, resilience, windowDays, elapsedDays float64) float64 {
	if elapsedDays <= 0 {
		return 0
	}
	if resilience <= 0 {
		resilience = 1.0
	}
	rate := tier.DecayPerDay / resilience

	graceDays := elapsedDays
	if graceDays > windowDays {
		graceDays = windowDays
	}
	overdueDays := elapsedDays - windowDays
	if overdueDays < 0 {
		overdueDays = 0
	}

	return rate * (cfg.GraceRate*graceDays + cfg.OverdueRate*overdueDays)
}

// CurrentScore computes a friend's health score at now by decaying the
// stored checkpoint. Pure: the same inputs always produce the same
// score, and logging is the only thing that moves the checkpoint.
func CurrentScore(cfg Config, f *store.Friend, now time.Time) float64 {
	elapsed := daysSince(f.LastUpdated, now)
	if elapsed <= 0 {
		return clampScore(f.StoredScore)
	}

	decay := decayOver(cfg, cfg.TierOf(f.Tier), f.Resilience, toleranceDays(cfg, f), elapsed)
	return clampScore(f.StoredScore - decay)
}

// CurrentMomentum returns the live remainder of the friend's momentum
// bonus, which fades linearly after each logged weave.
func CurrentMomentum(cfg Config, f *store.Friend, now time.Time) float64 {
	if f.Momentum <= 0 || f.MomentumUpdated == nil {
		return 0
	}
	elapsed := daysSince(*f.MomentumUpdated, now)
	if elapsed < 0 {
		elapsed = 0
	}
	m := f.Momentum - cfg.MomentumDecayPerDay*elapsed
	if m < 0 {
		return 0
	}
	return m
}

// DisplayScore is the UI-facing score: the decayed health score plus
// any live momentum, clamped to the scale.
func DisplayScore(cfg Config, f *store.Friend, now time.Time) float64 {
	return clampScore(CurrentScore(cfg, f, now) + CurrentMomentum(cfg, f, now))
}

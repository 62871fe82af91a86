package engine

import (
	"math"

	"github.com/tendhq/tend/internal/store"
)

// Learned carries the per-friend learned multipliers that feed the
// scorer. Zero values mean "nothing learned yet" and score neutrally.
type Learned struct {
	Reciprocity   float64 // initiation balance, [0.9, 1.1]
	Effectiveness float64 // category outcome history, [0.85, 1.2]
	Recency       float64 // same-day damping or reconnection boost
}

func (l Learned) orNeutral() Learned {
	if l.Reciprocity == 0 {
		l.Reciprocity = 1.0
	}
	if l.Effectiveness == 0 {
		l.Effectiveness = 1.0
	}
	if l.Recency == 0 {
		l.Recency = 1.0
	}
	return l
}

// Points is the full breakdown of one weave's award for one friend.
// Total = Base × the multiplicative factors, plus Uplift. The commit
// step layers intention and momentum bonuses on top.
type Points struct {
	Base          float64 `json:"base"`
	Duration      float64 `json:"duration"`
	Vibe          float64 `json:"vibe"`
	Dilution      float64 `json:"dilution"`
	Importance    float64 `json:"importance"`
	Affinity      float64 `json:"affinity"`
	Reciprocity   float64 `json:"reciprocity"`
	Effectiveness float64 `json:"effectiveness"`
	Recency       float64 `json:"recency"`
	Uplift        float64 `json:"uplift"`
	Total         float64 `json:"total"`
}

// PointsForWeave scores one weave for one friend. Pure and unclamped:
// bounding the stored score is the commit step's job. Planned weaves
// award nothing.
func PointsForWeave(cfg Config, f *store.Friend, w *store.Weave, learned Learned) Points {
	if w.Status != store.WeaveCompleted {
		return Points{}
	}
	learned = learned.orNeutral()

	p := Points{
		Base:          cfg.BasePoints(w.Category, w.Kind),
		Duration:      cfg.DurationFactor(w.DurationMin),
		Vibe:          cfg.VibeFactor(w.Vibe),
		Dilution:      groupDilution(cfg, w.GroupSize),
		Importance:    cfg.ImportanceFactor(w.Importance),
		Affinity:      cfg.AffinityFactor(f.Archetype, w.Category),
		Reciprocity:   learned.Reciprocity,
		Effectiveness: learned.Effectiveness,
		Recency:       learned.Recency,
	}

	if w.Notes != "" {
		p.Uplift += cfg.NotesUplift
	}
	if w.Reflection != "" {
		p.Uplift += cfg.ReflectionUplift
	}

	p.Total = p.Base*p.Duration*p.Vibe*p.Dilution*p.Importance*
		p.Affinity*p.Reciprocity*p.Effectiveness*p.Recency + p.Uplift
	return p
}

// groupDilution shrinks the award as the group grows: shared attention
// counts for less, but never below the floor.
func groupDilution(cfg Config, groupSize int) float64 {
	if groupSize <= 1 {
		return 1.0
	}
	d := 1.0 / math.Sqrt(float64(groupSize))
	if d < cfg.GroupDilutionFloor {
		return cfg.GroupDilutionFloor
	}
	return d
}

// recencyFactor damps same-day repeats and rewards reconnecting after a
// long silence. lastWeaveAt is nil when the friend has no completed
// weaves yet.
func recencyFactor(cfg Config, f *store.Friend, lastWeaveAt *int64, occurredAt int64) float64 {
	if lastWeaveAt == nil {
		return 1.0
	}
	gapDays := float64(occurredAt-*lastWeaveAt) / msPerDay
	if gapDays < 0 {
		return 1.0
	}
	if gapDays < 1 {
		return cfg.SameDayFactor
	}
	if gapDays > 2*toleranceDays(cfg, f) {
		return cfg.ReconnectionFactor
	}
	return 1.0
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendhq/tend/internal/logging"
	"github.com/tendhq/tend/internal/store"
)

// Engine orchestrates scoring, pattern learning, dormancy, and
// forecasting over the store. All time math runs through now so tests
// can pin the clock.
type Engine struct {
	DB  *store.DB
	cfg Config
	log *slog.Logger
	now func() time.Time

	recomputeCh chan string
	stopCh      chan struct{}
}

// New creates an Engine over db with the given model configuration.
func New(db *store.DB, cfg Config) *Engine {
	return &Engine{
		DB:          db,
		cfg:         cfg,
		log:         logging.New("engine"),
		now:         time.Now,
		recomputeCh: make(chan string, 64),
		stopCh:      make(chan struct{}),
	}
}

// Config returns the model configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// WeaveInput is a weave as submitted through the API or CLI.
type WeaveInput struct {
	FriendIDs   []string `json:"friend_ids"`
	OccurredAt  int64    `json:"occurred_at,omitempty"`
	Category    string   `json:"category,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	DurationMin int      `json:"duration_min,omitempty"`
	Vibe        int      `json:"vibe,omitempty"`
	Status      string   `json:"status,omitempty"`
	Initiator   string   `json:"initiator,omitempty"`
	Importance  string   `json:"importance,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Reflection  string   `json:"reflection,omitempty"`
}

// FriendAward is the scored outcome of one weave for one friend.
type FriendAward struct {
	FriendID           string  `json:"friend_id"`
	Name               string  `json:"name"`
	Points             Points  `json:"points"`
	Delta              float64 `json:"delta"`
	NewScore           float64 `json:"new_score"`
	FulfilledIntention string  `json:"fulfilled_intention,omitempty"`
	WokeDormant        bool    `json:"woke_dormant,omitempty"`
}

// WeaveResult reports what logging a weave changed.
type WeaveResult struct {
	WeaveID string        `json:"weave_id"`
	Status  string        `json:"status"`
	Awards  []FriendAward `json:"awards"`
}

// LogWeave validates, scores, and persists one weave. Scores settle
// to the present before points land, so stacking several logs in a row
// never double-counts decay. Everything is computed up front; the
// store applies it in a single transaction.
func (e *Engine) LogWeave(ctx context.Context, in WeaveInput) (*WeaveResult, error) {
	normalizeWeaveInput(&in)
	if in.OccurredAt == 0 {
		in.OccurredAt = e.now().UnixMilli()
	}
	if err := validateWeaveInput(e.cfg, &in); err != nil {
		return nil, err
	}

	friends := make([]*store.Friend, 0, len(in.FriendIDs))
	for _, id := range in.FriendIDs {
		f, err := e.DB.GetFriend(id)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("friend %s not found", id)
		}
		friends = append(friends, f)
	}

	w := &store.Weave{
		OccurredAt:  in.OccurredAt,
		Category:    in.Category,
		Kind:        in.Kind,
		DurationMin: in.DurationMin,
		Vibe:        in.Vibe,
		GroupSize:   len(friends),
		Status:      in.Status,
		Initiator:   in.Initiator,
		Importance:  in.Importance,
		Notes:       in.Notes,
		Reflection:  in.Reflection,
	}

	now := e.now()
	res := &WeaveResult{Status: w.Status}
	awards := make([]store.ScoreAward, 0, len(friends))
	for _, f := range friends {
		award, fa, err := e.scoreFriend(f, w, now)
		if err != nil {
			return nil, err
		}
		awards = append(awards, award)
		res.Awards = append(res.Awards, fa)
	}

	if err := e.DB.CommitWeave(w, awards); err != nil {
		return nil, err
	}
	res.WeaveID = w.ID

	if w.Status == store.WeaveCompleted {
		for _, f := range friends {
			e.queueRecompute(f.ID)
		}
	}

	e.log.Info("weave logged",
		"weave", w.ID,
		"status", w.Status,
		"friends", len(friends))
	return res, nil
}

// scoreFriend computes the full state change one weave causes for one
// friend. A planned weave awards nothing and must not re-anchor the
// stored score: moving last_updated would restart the grace window.
func (e *Engine) scoreFriend(f *store.Friend, w *store.Weave, now time.Time) (store.ScoreAward, FriendAward, error) {
	fa := FriendAward{FriendID: f.ID, Name: f.Name, WokeDormant: f.IsDormant}

	if w.Status == store.WeavePlanned {
		award := store.ScoreAward{
			FriendID:        f.ID,
			StoredScore:     f.StoredScore,
			LastUpdated:     f.LastUpdated,
			Resilience:      f.Resilience,
			Momentum:        f.Momentum,
			MomentumUpdated: f.MomentumUpdated,
			RatedWeaveCount: f.RatedWeaveCount,
		}
		fa.NewScore = CurrentScore(e.cfg, f, now)
		return award, fa, nil
	}

	cur := CurrentScore(e.cfg, f, now)
	momentum := CurrentMomentum(e.cfg, f, now)

	self, other, mutual, err := e.DB.InitiatorCounts(f.ID)
	if err != nil {
		return store.ScoreAward{}, fa, err
	}
	stat, err := e.DB.GetCategoryStat(f.ID, w.Category)
	if err != nil {
		return store.ScoreAward{}, fa, err
	}
	lastAt, err := e.DB.LastCompletedWeaveAt(f.ID)
	if err != nil {
		return store.ScoreAward{}, fa, err
	}

	learned := Learned{
		Reciprocity:   ReciprocityFrom(e.cfg, self, other, mutual).Multiplier,
		Effectiveness: EffectivenessMultiplier(e.cfg, stat),
		Recency:       recencyFactor(e.cfg, f, lastAt, w.OccurredAt),
	}
	pts := PointsForWeave(e.cfg, f, w, learned)
	delta := pts.Total

	intention, err := e.DB.OldestOpenIntention(f.ID)
	if err != nil {
		return store.ScoreAward{}, fa, err
	}
	if intention != nil {
		delta *= e.cfg.IntentionBonus
		fa.FulfilledIntention = intention.ID
	}
	if momentum > 0 {
		delta *= e.cfg.MomentumBoost
	}

	newScore := clampScore(cur + delta)

	resilience := f.Resilience
	rated := f.RatedWeaveCount
	if w.Vibe >= 1 {
		rated++
		if rated >= e.cfg.ResilienceGate {
			switch {
			case w.Vibe >= 4:
				resilience += e.cfg.ResilienceGain
			case w.Vibe <= 2:
				resilience -= e.cfg.ResilienceLoss
			}
			if resilience < e.cfg.ResilienceMin {
				resilience = e.cfg.ResilienceMin
			}
			if resilience > e.cfg.ResilienceMax {
				resilience = e.cfg.ResilienceMax
			}
		}
	}

	nowMs := now.UnixMilli()
	award := store.ScoreAward{
		FriendID:        f.ID,
		Points:          delta,
		StoredScore:     newScore,
		LastUpdated:     nowMs,
		Resilience:      resilience,
		Momentum:        e.cfg.MomentumInitial,
		MomentumUpdated: &nowMs,
		RatedWeaveCount: rated,
	}
	if intention != nil {
		award.FulfillsIntention = intention.ID
	}
	if w.Vibe >= 1 && w.Category != "" {
		upd := nextCategoryStat(e.cfg, stat, w.Category, w.Vibe)
		award.CategoryStat = &upd
	}

	fa.Points = pts
	fa.Delta = delta
	fa.NewScore = newScore
	return award, fa, nil
}

// queueRecompute enqueues a pattern recompute without blocking. A full
// queue drops the request; the next completed weave retries.
func (e *Engine) queueRecompute(friendID string) {
	select {
	case e.recomputeCh <- friendID:
	default:
		e.log.Debug("recompute queue full", "friend", friendID)
	}
}

// recomputePattern relearns a friend's rhythm on every fifth completed
// weave. Unreliable patterns leave the stored rhythm untouched.
func (e *Engine) recomputePattern(friendID string) error {
	count, err := e.DB.CompletedWeaveCount(friendID)
	if err != nil {
		return err
	}
	if count < e.cfg.RecomputeEvery || count%e.cfg.RecomputeEvery != 0 {
		return nil
	}

	f, err := e.DB.GetFriend(friendID)
	if err != nil || f == nil {
		return err
	}

	history, err := e.DB.FriendWeaveHistory(friendID)
	if err != nil {
		return err
	}

	p := AnalyzePattern(e.cfg, history)
	if !p.Reliable {
		return nil
	}

	window := ToleranceWindow(e.cfg, f.Tier, p)
	if err := e.DB.UpdateFriendRhythm(friendID, p.AverageIntervalDays, window); err != nil {
		return err
	}
	e.log.Info("rhythm learned",
		"friend", friendID,
		"interval_days", p.AverageIntervalDays,
		"window_days", window)
	return nil
}

// StartRecomputeWorker drains the pattern recompute queue until Stop.
func (e *Engine) StartRecomputeWorker() {
	go func() {
		for {
			select {
			case id := <-e.recomputeCh:
				if err := e.recomputePattern(id); err != nil {
					e.log.Warn("pattern recompute failed", "friend", id, "error", err)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// StartSweepTimer runs a dormancy sweep at startup and then on the
// given interval.
func (e *Engine) StartSweepTimer(interval time.Duration) {
	if _, err := e.SweepDormancy(context.Background()); err != nil {
		e.log.Error("dormancy sweep failed", "error", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.SweepDormancy(context.Background()); err != nil {
					e.log.Error("dormancy sweep failed", "error", err)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Health is a friend's live computed state.
type Health struct {
	Friend         *store.Friend `json:"friend"`
	CurrentScore   float64       `json:"current_score"`
	Momentum       float64       `json:"momentum"`
	DisplayScore   float64       `json:"display_score"`
	ToleranceDays  float64       `json:"tolerance_days"`
	Pattern        Pattern       `json:"pattern"`
	Reciprocity    Reciprocity   `json:"reciprocity"`
	NeedsAttention bool          `json:"needs_attention"`
}

// FriendHealth computes a friend's live score, momentum, pattern, and
// reciprocity. Returns nil when the friend does not exist.
func (e *Engine) FriendHealth(friendID string) (*Health, error) {
	f, err := e.DB.GetFriend(friendID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}

	history, err := e.DB.FriendWeaveHistory(friendID)
	if err != nil {
		return nil, err
	}
	self, other, mutual, err := e.DB.InitiatorCounts(friendID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	cur := CurrentScore(e.cfg, f, now)
	momentum := CurrentMomentum(e.cfg, f, now)

	return &Health{
		Friend:         f,
		CurrentScore:   cur,
		Momentum:       momentum,
		DisplayScore:   clampScore(cur + momentum),
		ToleranceDays:  toleranceDays(e.cfg, f),
		Pattern:        AnalyzePattern(e.cfg, history),
		Reciprocity:    ReciprocityFrom(e.cfg, self, other, mutual),
		NeedsAttention: cur <= e.cfg.TierOf(f.Tier).AttentionThreshold,
	}, nil
}

// Suggestions ranks weave categories for a friend, best first. Returns
// nil when the friend does not exist.
func (e *Engine) Suggestions(friendID string) ([]Suggestion, error) {
	f, err := e.DB.GetFriend(friendID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}

	history, err := e.DB.FriendWeaveHistory(friendID)
	if err != nil {
		return nil, err
	}
	stats, err := e.DB.ListCategoryStats(friendID)
	if err != nil {
		return nil, err
	}

	return SuggestCategories(e.cfg, f, AnalyzePattern(e.cfg, history), stats), nil
}

package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendhq/tend/internal/store"
)

// SweepResult reports what a dormancy sweep changed.
type SweepResult struct {
	Evaluated     int      `json:"evaluated"`
	MarkedDormant []string `json:"marked_dormant"`
	Woken         []string `json:"woken"`
}

// shouldBeDormant decides whether a friend belongs in the dormant
// state right now. Inner circle friends never go dormant, and an open
// intention means the user already has a plan, which blocks dormancy
// outright.
func shouldBeDormant(cfg Config, f *store.Friend, hasOpenIntention bool, lastWeaveAt *int64, now time.Time) bool {
	if f.Tier == store.TierInnerCircle {
		return false
	}
	if hasOpenIntention {
		return false
	}
	if CurrentScore(cfg, f, now) >= cfg.DormancyScoreThreshold {
		return false
	}

	anchor := f.CreatedAt
	if lastWeaveAt != nil {
		anchor = *lastWeaveAt
	}
	return daysSince(anchor, now) > cfg.DormancyInactivityDays
}

// SweepDormancy re-evaluates every friend against the dormancy
// criteria. Friends that now qualify are marked dormant; dormant
// friends that no longer qualify, say after a retier or a new
// intention, are woken. Per-friend checks fan out since each needs
// its own last-weave lookup.
func (e *Engine) SweepDormancy(ctx context.Context) (*SweepResult, error) {
	friends, err := e.DB.ListFriends()
	if err != nil {
		return nil, err
	}

	open, err := e.DB.FriendsWithOpenIntentions()
	if err != nil {
		return nil, err
	}

	now := e.now()
	res := &SweepResult{Evaluated: len(friends)}
	if len(friends) == 0 {
		return res, nil
	}

	// -1 skipped, 0 active, 1 dormant
	desired := make([]int, len(friends))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range friends {
		i := i
		g.Go(func() error {
			f := &friends[i]
			lastAt, err := e.DB.LastCompletedWeaveAt(f.ID)
			if err != nil {
				e.log.Warn("dormancy check failed", "friend", f.ID, "error", err)
				desired[i] = -1
				return nil
			}
			if shouldBeDormant(e.cfg, f, open[f.ID], lastAt, now) {
				desired[i] = 1
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range friends {
		f := &friends[i]
		switch {
		case desired[i] == 1 && !f.IsDormant:
			res.MarkedDormant = append(res.MarkedDormant, f.ID)
		case desired[i] == 0 && f.IsDormant:
			res.Woken = append(res.Woken, f.ID)
		}
	}

	if err := e.DB.ApplyDormancy(res.MarkedDormant, res.Woken, now.UnixMilli()); err != nil {
		return nil, err
	}

	if len(res.MarkedDormant) > 0 || len(res.Woken) > 0 {
		e.log.Info("dormancy sweep applied",
			"evaluated", res.Evaluated,
			"marked", len(res.MarkedDormant),
			"woken", len(res.Woken))
	}
	return res, nil
}

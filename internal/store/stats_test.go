package store

import (
	"testing"
)

func TestGetCategoryStat_NotFound(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierInnerCircle)

	s, err := db.GetCategoryStat(f.ID, "hangout")
	if err != nil {
		t.Fatalf("GetCategoryStat: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil for untracked category, got %+v", s)
	}
}

func TestListCategoryStats(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierInnerCircle)

	pairs := []struct {
		category string
		ema      float64
	}{
		{"hangout", 0.4},
		{"deep_talk", 0.9},
		{"meal", 0.6},
	}
	for i, p := range pairs {
		award := basicAward(f, 10)
		award.CategoryStat = &CategoryStatUpdate{Category: p.category, OutcomeEMA: p.ema, RatedCount: 1}
		w := &Weave{OccurredAt: int64(1000 + i), Category: p.category, Vibe: 3, Status: WeaveCompleted, GroupSize: 1}
		if err := db.CommitWeave(w, []ScoreAward{award}); err != nil {
			t.Fatalf("CommitWeave: %v", err)
		}
	}

	stats, err := db.ListCategoryStats(f.ID)
	if err != nil {
		t.Fatalf("ListCategoryStats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("got %d stats, want 3", len(stats))
	}
	if stats[0].Category != "deep_talk" {
		t.Errorf("best category = %q, want deep_talk", stats[0].Category)
	}
	if stats[2].Category != "hangout" {
		t.Errorf("worst category = %q, want hangout", stats[2].Category)
	}
}

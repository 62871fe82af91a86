package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tendhq/tend/internal/store"
)

func weaveAt(at time.Time, category string) store.FriendWeave {
	return store.FriendWeave{Weave: store.Weave{
		OccurredAt: at.UnixMilli(),
		Category:   category,
		Status:     store.WeaveCompleted,
	}}
}

func TestAnalyzePattern_Empty(t *testing.T) {
	got := AnalyzePattern(DefaultConfig(), nil)
	want := Pattern{PreferredWeekday: -1}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pattern mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzePattern_Regular(t *testing.T) {
	// Six weaves exactly a week apart, all on a Sunday.
	history := []store.FriendWeave{
		weaveAt(baseTime, "deep_talk"),
		weaveAt(daysAfter(baseTime, 7), "call"),
		weaveAt(daysAfter(baseTime, 14), "deep_talk"),
		weaveAt(daysAfter(baseTime, 21), "hangout"),
		weaveAt(daysAfter(baseTime, 28), "call"),
		weaveAt(daysAfter(baseTime, 35), "deep_talk"),
	}

	got := AnalyzePattern(DefaultConfig(), history)
	want := Pattern{
		AverageIntervalDays: 7,
		Consistency:         1,
		SampleSize:          6,
		PreferredCategories: []string{"deep_talk", "call", "hangout"},
		PreferredWeekday:    int(time.Sunday),
		Reliable:            true,
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("pattern mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzePattern_SparseHistory(t *testing.T) {
	cfg := DefaultConfig()

	// One weave: no gaps, no weekday signal.
	got := AnalyzePattern(cfg, []store.FriendWeave{weaveAt(baseTime, "meal")})
	if got.SampleSize != 1 || got.AverageIntervalDays != 0 || got.Reliable {
		t.Errorf("single weave: got %+v", got)
	}
	if got.PreferredWeekday != -1 {
		t.Errorf("PreferredWeekday = %d, want -1 below the sample gate", got.PreferredWeekday)
	}

	// Two weaves: an average exists but one gap has no variability
	// signal, so consistency stays zero.
	got = AnalyzePattern(cfg, []store.FriendWeave{
		weaveAt(baseTime, "meal"),
		weaveAt(daysAfter(baseTime, 10), "meal"),
	})
	if !almostEqual(got.AverageIntervalDays, 10) {
		t.Errorf("AverageIntervalDays = %v, want 10", got.AverageIntervalDays)
	}
	if got.Consistency != 0 {
		t.Errorf("Consistency = %v, want 0 with a single gap", got.Consistency)
	}
}

func TestAnalyzePattern_ReliabilityGates(t *testing.T) {
	cfg := DefaultConfig()

	// Consistent but too few samples.
	small := []store.FriendWeave{
		weaveAt(baseTime, "call"),
		weaveAt(daysAfter(baseTime, 7), "call"),
		weaveAt(daysAfter(baseTime, 14), "call"),
	}
	if p := AnalyzePattern(cfg, small); p.Reliable {
		t.Errorf("3 samples should not be reliable: %+v", p)
	}

	// Plenty of samples but wildly irregular: daily weaves and then a
	// 90-day silence push the variation past the gate.
	var erratic []store.FriendWeave
	for d := 0; d < 9; d++ {
		erratic = append(erratic, weaveAt(daysAfter(baseTime, d), "message"))
	}
	erratic = append(erratic, weaveAt(daysAfter(baseTime, 98), "message"))

	p := AnalyzePattern(cfg, erratic)
	if p.Consistency >= cfg.PatternMinConsistency {
		t.Fatalf("Consistency = %v, want below %v", p.Consistency, cfg.PatternMinConsistency)
	}
	if p.Reliable {
		t.Error("erratic history should not be reliable")
	}
}

func TestRankCategories_Ties(t *testing.T) {
	history := []store.FriendWeave{
		weaveAt(baseTime, "call"),
		weaveAt(daysAfter(baseTime, 1), "meal"),
		weaveAt(daysAfter(baseTime, 2), "call"),
		weaveAt(daysAfter(baseTime, 3), "meal"),
	}

	// Equal counts: the most recently seen category wins.
	got := rankCategories(history)
	want := []string{"meal", "call"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestRankCategories_SkipsUncategorized(t *testing.T) {
	history := []store.FriendWeave{
		weaveAt(baseTime, ""),
		weaveAt(daysAfter(baseTime, 1), ""),
	}
	if got := rankCategories(history); got != nil {
		t.Errorf("rankCategories = %v, want nil", got)
	}
}

func TestModalWeekday(t *testing.T) {
	// Two Sundays and a Wednesday.
	history := []store.FriendWeave{
		weaveAt(baseTime, "call"),
		weaveAt(daysAfter(baseTime, 3), "call"),
		weaveAt(daysAfter(baseTime, 7), "call"),
	}

	p := AnalyzePattern(DefaultConfig(), history)
	if p.PreferredWeekday != int(time.Sunday) {
		t.Errorf("PreferredWeekday = %d, want %d", p.PreferredWeekday, time.Sunday)
	}
}

func TestToleranceWindow(t *testing.T) {
	cfg := DefaultConfig()

	reliable := func(avg float64) Pattern {
		return Pattern{AverageIntervalDays: avg, Consistency: 0.8, SampleSize: 6, Reliable: true}
	}

	tests := []struct {
		name string
		p    Pattern
		want float64
	}{
		{"scaled", reliable(10), 12.5},
		{"floored", reliable(2), 7},    // 0.5x the 14-day default
		{"capped", reliable(40), 35},   // 2.5x the 14-day default
		{"unreliable", Pattern{AverageIntervalDays: 10}, 14},
		{"empty", Pattern{}, 14},
	}
	for _, tt := range tests {
		got := ToleranceWindow(cfg, store.TierCloseFriends, tt.p)
		if !almostEqual(got, tt.want) {
			t.Errorf("%s: ToleranceWindow = %v, want %v", tt.name, got, tt.want)
		}
	}
}

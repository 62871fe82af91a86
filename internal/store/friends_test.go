package store

import (
	"testing"
)

// testDB is a helper that creates an in-memory DB for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFriend is a helper that creates a friend and fails the test on error.
func seedFriend(t *testing.T, db *DB, name, tier string) *Friend {
	t.Helper()
	f := &Friend{Name: name, Tier: tier}
	if err := db.CreateFriend(f); err != nil {
		t.Fatalf("CreateFriend %s: %v", name, err)
	}
	return f
}

func TestCreateFriend(t *testing.T) {
	db := testDB(t)

	f := &Friend{Name: "Maya", Tier: TierInnerCircle, Archetype: "confidant"}
	if err := db.CreateFriend(f); err != nil {
		t.Fatalf("CreateFriend: %v", err)
	}

	if f.ID == "" {
		t.Error("ID should be assigned")
	}
	if f.StoredScore != 50 {
		t.Errorf("StoredScore = %v, want 50", f.StoredScore)
	}
	if f.Resilience != 1.0 {
		t.Errorf("Resilience = %v, want 1.0", f.Resilience)
	}
	if f.Momentum != 0 {
		t.Errorf("Momentum = %v, want 0", f.Momentum)
	}
	if f.IsDormant {
		t.Error("new friend should not be dormant")
	}
	if f.LastUpdated == 0 {
		t.Error("LastUpdated should be set")
	}
	if f.TypicalIntervalDays != nil {
		t.Error("new friend should have no learned interval")
	}
}

func TestCreateFriend_BadTier(t *testing.T) {
	db := testDB(t)

	f := &Friend{Name: "Maya", Tier: "bestie"}
	if err := db.CreateFriend(f); err == nil {
		t.Error("expected CHECK violation for unknown tier")
	}
}

func TestGetFriend(t *testing.T) {
	db := testDB(t)

	// Not found returns nil
	f, err := db.GetFriend("nonexistent")
	if err != nil {
		t.Fatalf("GetFriend: %v", err)
	}
	if f != nil {
		t.Errorf("expected nil for nonexistent friend, got %+v", f)
	}

	created := seedFriend(t, db, "Maya", TierInnerCircle)
	f, err = db.GetFriend(created.ID)
	if err != nil {
		t.Fatalf("GetFriend: %v", err)
	}
	if f == nil {
		t.Fatal("expected friend, got nil")
	}
	if f.Name != "Maya" {
		t.Errorf("Name = %q, want Maya", f.Name)
	}
	if f.Tier != TierInnerCircle {
		t.Errorf("Tier = %q, want inner_circle", f.Tier)
	}
}

func TestGetFriendByName(t *testing.T) {
	db := testDB(t)

	seedFriend(t, db, "Maya", TierInnerCircle)

	f, err := db.GetFriendByName("Maya")
	if err != nil {
		t.Fatalf("GetFriendByName: %v", err)
	}
	if f == nil {
		t.Fatal("expected friend, got nil")
	}

	f, err = db.GetFriendByName("Nobody")
	if err != nil {
		t.Fatalf("GetFriendByName: %v", err)
	}
	if f != nil {
		t.Errorf("expected nil for unknown name, got %+v", f)
	}
}

func TestListFriends(t *testing.T) {
	db := testDB(t)

	seedFriend(t, db, "Zoe", TierCommunity)
	seedFriend(t, db, "Amir", TierCloseFriends)
	seedFriend(t, db, "Maya", TierInnerCircle)

	friends, err := db.ListFriends()
	if err != nil {
		t.Fatalf("ListFriends: %v", err)
	}
	if len(friends) != 3 {
		t.Fatalf("got %d friends, want 3", len(friends))
	}
	if friends[0].Name != "Amir" || friends[2].Name != "Zoe" {
		t.Errorf("friends not ordered by name: %s, %s, %s",
			friends[0].Name, friends[1].Name, friends[2].Name)
	}
}

func TestListFriendsByTier(t *testing.T) {
	db := testDB(t)

	seedFriend(t, db, "Maya", TierInnerCircle)
	seedFriend(t, db, "Amir", TierCloseFriends)
	seedFriend(t, db, "Noor", TierInnerCircle)

	inner, err := db.ListFriendsByTier(TierInnerCircle)
	if err != nil {
		t.Fatalf("ListFriendsByTier: %v", err)
	}
	if len(inner) != 2 {
		t.Fatalf("got %d inner friends, want 2", len(inner))
	}
}

func TestUpdateFriend(t *testing.T) {
	db := testDB(t)

	f := seedFriend(t, db, "Maya", TierCommunity)
	f.Name = "Maya R"
	f.Tier = TierInnerCircle
	f.Archetype = "kindred"
	if err := db.UpdateFriend(f); err != nil {
		t.Fatalf("UpdateFriend: %v", err)
	}

	got, _ := db.GetFriend(f.ID)
	if got.Name != "Maya R" {
		t.Errorf("Name = %q, want Maya R", got.Name)
	}
	if got.Tier != TierInnerCircle {
		t.Errorf("Tier = %q, want inner_circle", got.Tier)
	}
	if got.Archetype != "kindred" {
		t.Errorf("Archetype = %q, want kindred", got.Archetype)
	}
	// Health state untouched
	if got.StoredScore != 50 {
		t.Errorf("StoredScore = %v, want 50", got.StoredScore)
	}
}

func TestUpdateFriendRhythm(t *testing.T) {
	db := testDB(t)

	f := seedFriend(t, db, "Maya", TierInnerCircle)
	if err := db.UpdateFriendRhythm(f.ID, 9.5, 11.875); err != nil {
		t.Fatalf("UpdateFriendRhythm: %v", err)
	}

	got, _ := db.GetFriend(f.ID)
	if got.TypicalIntervalDays == nil || *got.TypicalIntervalDays != 9.5 {
		t.Errorf("TypicalIntervalDays = %v, want 9.5", got.TypicalIntervalDays)
	}
	if got.ToleranceWindowDays == nil || *got.ToleranceWindowDays != 11.875 {
		t.Errorf("ToleranceWindowDays = %v, want 11.875", got.ToleranceWindowDays)
	}
}

func TestSetDormant(t *testing.T) {
	db := testDB(t)

	a := seedFriend(t, db, "Amir", TierCloseFriends)
	b := seedFriend(t, db, "Zoe", TierCommunity)

	if err := db.SetDormant([]string{a.ID, b.ID}, 1000); err != nil {
		t.Fatalf("SetDormant: %v", err)
	}

	got, _ := db.GetFriend(a.ID)
	if !got.IsDormant {
		t.Error("friend should be dormant")
	}
	if got.DormantSince == nil || *got.DormantSince != 1000 {
		t.Errorf("DormantSince = %v, want 1000", got.DormantSince)
	}

	// Already-dormant friends keep their original dormant_since
	if err := db.SetDormant([]string{a.ID}, 2000); err != nil {
		t.Fatalf("SetDormant again: %v", err)
	}
	got, _ = db.GetFriend(a.ID)
	if got.DormantSince == nil || *got.DormantSince != 1000 {
		t.Errorf("DormantSince = %v, want original 1000", got.DormantSince)
	}
}

func TestSetDormant_Empty(t *testing.T) {
	db := testDB(t)
	if err := db.SetDormant(nil, 1000); err != nil {
		t.Fatalf("SetDormant with no ids: %v", err)
	}
}

func TestWakeDormant(t *testing.T) {
	db := testDB(t)

	a := seedFriend(t, db, "Amir", TierCloseFriends)
	b := seedFriend(t, db, "Zoe", TierCommunity)

	if err := db.SetDormant([]string{a.ID}, 1000); err != nil {
		t.Fatalf("SetDormant: %v", err)
	}

	// Waking a mixed batch is fine; active friends are untouched.
	if err := db.WakeDormant([]string{a.ID, b.ID}); err != nil {
		t.Fatalf("WakeDormant: %v", err)
	}

	got, _ := db.GetFriend(a.ID)
	if got.IsDormant {
		t.Error("friend should be awake")
	}
	if got.DormantSince != nil {
		t.Errorf("DormantSince = %v, want nil", got.DormantSince)
	}

	if err := db.WakeDormant(nil); err != nil {
		t.Fatalf("WakeDormant with no ids: %v", err)
	}
}

func TestApplyDormancy(t *testing.T) {
	db := testDB(t)

	sinking := seedFriend(t, db, "Amir", TierCloseFriends)
	recovering := seedFriend(t, db, "Zoe", TierCommunity)
	bystander := seedFriend(t, db, "Maya", TierInnerCircle)

	if err := db.SetDormant([]string{recovering.ID}, 500); err != nil {
		t.Fatalf("SetDormant: %v", err)
	}

	if err := db.ApplyDormancy([]string{sinking.ID}, []string{recovering.ID}, 1000); err != nil {
		t.Fatalf("ApplyDormancy: %v", err)
	}

	got, _ := db.GetFriend(sinking.ID)
	if !got.IsDormant {
		t.Error("marked friend should be dormant")
	}
	if got.DormantSince == nil || *got.DormantSince != 1000 {
		t.Errorf("DormantSince = %v, want 1000", got.DormantSince)
	}

	got, _ = db.GetFriend(recovering.ID)
	if got.IsDormant {
		t.Error("woken friend should be active")
	}
	if got.DormantSince != nil {
		t.Errorf("DormantSince = %v, want nil", got.DormantSince)
	}

	got, _ = db.GetFriend(bystander.ID)
	if got.IsDormant {
		t.Error("unlisted friend should be untouched")
	}

	if err := db.ApplyDormancy(nil, nil, 2000); err != nil {
		t.Fatalf("ApplyDormancy with no transitions: %v", err)
	}
}

func TestDeleteFriend(t *testing.T) {
	db := testDB(t)

	f := seedFriend(t, db, "Maya", TierInnerCircle)
	other := seedFriend(t, db, "Amir", TierCloseFriends)

	// A weave only Maya was part of, and one shared with Amir.
	solo := &Weave{OccurredAt: 1000, Category: "call", Status: WeaveCompleted, GroupSize: 1}
	if err := db.CommitWeave(solo, []ScoreAward{basicAward(f, 10)}); err != nil {
		t.Fatalf("CommitWeave solo: %v", err)
	}
	shared := &Weave{OccurredAt: 2000, Category: "hangout", Status: WeaveCompleted, GroupSize: 2}
	if err := db.CommitWeave(shared, []ScoreAward{basicAward(f, 8), basicAward(other, 8)}); err != nil {
		t.Fatalf("CommitWeave shared: %v", err)
	}

	it := &Intention{FriendID: f.ID, Category: "call"}
	if err := db.CreateIntention(it); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}

	if err := db.DeleteFriend(f.ID); err != nil {
		t.Fatalf("DeleteFriend: %v", err)
	}

	if got, _ := db.GetFriend(f.ID); got != nil {
		t.Error("friend should be gone")
	}
	if got, _ := db.GetIntention(it.ID); got != nil {
		t.Error("intentions should cascade")
	}
	if got, _ := db.GetWeave(solo.ID); got != nil {
		t.Error("orphaned weave should be cleaned up")
	}
	if got, _ := db.GetWeave(shared.ID); got == nil {
		t.Error("shared weave should survive")
	}
}

func TestCountFriends(t *testing.T) {
	db := testDB(t)

	seedFriend(t, db, "Maya", TierInnerCircle)
	seedFriend(t, db, "Amir", TierCloseFriends)

	n, err := db.CountFriends()
	if err != nil {
		t.Fatalf("CountFriends: %v", err)
	}
	if n != 2 {
		t.Errorf("CountFriends = %d, want 2", n)
	}
}

func TestValidTier(t *testing.T) {
	for _, tier := range []string{TierInnerCircle, TierCloseFriends, TierCommunity} {
		if !ValidTier(tier) {
			t.Errorf("ValidTier(%q) = false, want true", tier)
		}
	}
	for _, tier := range []string{"", "bestie", "INNER"} {
		if ValidTier(tier) {
			t.Errorf("ValidTier(%q) = true, want false", tier)
		}
	}
}

func TestValidArchetype(t *testing.T) {
	for _, a := range []string{"", "confidant", "adventurer", "thinker", "neighbor", "kindred"} {
		if !ValidArchetype(a) {
			t.Errorf("ValidArchetype(%q) = false, want true", a)
		}
	}
	if ValidArchetype("rival") {
		t.Error(`ValidArchetype("rival") = true, want false`)
	}
}

// basicAward builds a ScoreAward that bumps the friend's score by points
// without touching rhythm, intentions, or category stats.
func basicAward(f *Friend, points float64) ScoreAward {
	at := f.LastUpdated
	return ScoreAward{
		FriendID:        f.ID,
		Points:          points,
		StoredScore:     f.StoredScore + points,
		LastUpdated:     f.LastUpdated,
		Resilience:      f.Resilience,
		Momentum:        15,
		MomentumUpdated: &at,
		RatedWeaveCount: f.RatedWeaveCount,
	}
}

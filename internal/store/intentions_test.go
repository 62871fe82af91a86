package store

import (
	"errors"
	"testing"
)

func TestCreateIntention(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierInnerCircle)

	due := int64(99000)
	it := &Intention{FriendID: f.ID, Category: "meal", Note: "dinner at the new place", DueAt: &due}
	if err := db.CreateIntention(it); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	if it.ID == "" {
		t.Error("ID should be assigned")
	}
	if it.Status != IntentionOpen {
		t.Errorf("Status = %q, want open", it.Status)
	}

	got, err := db.GetIntention(it.ID)
	if err != nil {
		t.Fatalf("GetIntention: %v", err)
	}
	if got == nil {
		t.Fatal("expected intention, got nil")
	}
	if got.DueAt == nil || *got.DueAt != 99000 {
		t.Errorf("DueAt = %v, want 99000", got.DueAt)
	}
	if got.FulfilledAt != nil {
		t.Errorf("FulfilledAt = %v, want nil", got.FulfilledAt)
	}
}

func TestCreateIntention_WakesDormantFriend(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierCloseFriends)

	if err := db.SetDormant([]string{f.ID}, 1000); err != nil {
		t.Fatalf("SetDormant: %v", err)
	}

	it := &Intention{FriendID: f.ID, Category: "call"}
	if err := db.CreateIntention(it); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}

	got, _ := db.GetFriend(f.ID)
	if got.IsDormant {
		t.Error("declaring an intention should wake a dormant friend")
	}
	if got.DormantSince != nil {
		t.Errorf("DormantSince = %v, want nil", got.DormantSince)
	}
}

func TestGetIntention_NotFound(t *testing.T) {
	db := testDB(t)
	it, err := db.GetIntention("nonexistent")
	if err != nil {
		t.Fatalf("GetIntention: %v", err)
	}
	if it != nil {
		t.Errorf("expected nil for nonexistent intention, got %+v", it)
	}
}

func TestListIntentions(t *testing.T) {
	db := testDB(t)
	maya := seedFriend(t, db, "Maya", TierInnerCircle)
	amir := seedFriend(t, db, "Amir", TierCloseFriends)

	first := &Intention{FriendID: maya.ID, Category: "call"}
	if err := db.CreateIntention(first); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	second := &Intention{FriendID: maya.ID, Category: "meal"}
	if err := db.CreateIntention(second); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	theirs := &Intention{FriendID: amir.ID, Category: "activity"}
	if err := db.CreateIntention(theirs); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	if err := db.FulfillIntention(first.ID); err != nil {
		t.Fatalf("FulfillIntention: %v", err)
	}

	all, err := db.ListIntentions("", "")
	if err != nil {
		t.Fatalf("ListIntentions all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d intentions, want 3", len(all))
	}

	mayas, err := db.ListIntentions(maya.ID, "")
	if err != nil {
		t.Fatalf("ListIntentions by friend: %v", err)
	}
	if len(mayas) != 2 {
		t.Fatalf("got %d intentions for maya, want 2", len(mayas))
	}

	open, err := db.ListIntentions(maya.ID, IntentionOpen)
	if err != nil {
		t.Fatalf("ListIntentions open: %v", err)
	}
	if len(open) != 1 || open[0].ID != second.ID {
		t.Errorf("open intentions = %+v, want just the meal one", open)
	}
}

func TestOldestOpenIntention(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierInnerCircle)

	it, err := db.OldestOpenIntention(f.ID)
	if err != nil {
		t.Fatalf("OldestOpenIntention: %v", err)
	}
	if it != nil {
		t.Errorf("expected nil with no intentions, got %+v", it)
	}

	first := &Intention{FriendID: f.ID, Category: "call"}
	if err := db.CreateIntention(first); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	// Force distinct created_at ordering
	if _, err := db.Exec("UPDATE intentions SET created_at = 1000 WHERE id = ?", first.ID); err != nil {
		t.Fatalf("backdate intention: %v", err)
	}
	second := &Intention{FriendID: f.ID, Category: "meal"}
	if err := db.CreateIntention(second); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}

	it, err = db.OldestOpenIntention(f.ID)
	if err != nil {
		t.Fatalf("OldestOpenIntention: %v", err)
	}
	if it == nil || it.ID != first.ID {
		t.Errorf("oldest open = %+v, want the backdated call intention", it)
	}

	// Once fulfilled, the next oldest surfaces
	if err := db.FulfillIntention(first.ID); err != nil {
		t.Fatalf("FulfillIntention: %v", err)
	}
	it, _ = db.OldestOpenIntention(f.ID)
	if it == nil || it.ID != second.ID {
		t.Errorf("oldest open after fulfill = %+v, want the meal intention", it)
	}
}

func TestFriendsWithOpenIntentions(t *testing.T) {
	db := testDB(t)
	maya := seedFriend(t, db, "Maya", TierInnerCircle)
	amir := seedFriend(t, db, "Amir", TierCloseFriends)
	zoe := seedFriend(t, db, "Zoe", TierCommunity)

	if err := db.CreateIntention(&Intention{FriendID: maya.ID}); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	done := &Intention{FriendID: amir.ID}
	if err := db.CreateIntention(done); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}
	if err := db.AbandonIntention(done.ID); err != nil {
		t.Fatalf("AbandonIntention: %v", err)
	}

	shielded, err := db.FriendsWithOpenIntentions()
	if err != nil {
		t.Fatalf("FriendsWithOpenIntentions: %v", err)
	}
	if !shielded[maya.ID] {
		t.Error("maya should be shielded")
	}
	if shielded[amir.ID] {
		t.Error("amir's intention was abandoned, no shield")
	}
	if shielded[zoe.ID] {
		t.Error("zoe has no intentions")
	}
}

func TestFulfillIntention(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierInnerCircle)

	it := &Intention{FriendID: f.ID, Category: "call"}
	if err := db.CreateIntention(it); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}

	if err := db.FulfillIntention(it.ID); err != nil {
		t.Fatalf("FulfillIntention: %v", err)
	}

	got, _ := db.GetIntention(it.ID)
	if got.Status != IntentionFulfilled {
		t.Errorf("Status = %q, want fulfilled", got.Status)
	}
	if got.FulfilledAt == nil {
		t.Error("FulfilledAt should be set")
	}

	// Fulfilling again should report the not-open state so callers can
	// tell a conflict apart from a storage failure.
	if err := db.FulfillIntention(it.ID); !errors.Is(err, ErrIntentionNotOpen) {
		t.Errorf("double fulfill error = %v, want ErrIntentionNotOpen", err)
	}
}

func TestAbandonIntention(t *testing.T) {
	db := testDB(t)
	f := seedFriend(t, db, "Maya", TierInnerCircle)

	it := &Intention{FriendID: f.ID, Category: "call"}
	if err := db.CreateIntention(it); err != nil {
		t.Fatalf("CreateIntention: %v", err)
	}

	if err := db.AbandonIntention(it.ID); err != nil {
		t.Fatalf("AbandonIntention: %v", err)
	}

	got, _ := db.GetIntention(it.ID)
	if got.Status != IntentionAbandoned {
		t.Errorf("Status = %q, want abandoned", got.Status)
	}
	if got.FulfilledAt != nil {
		t.Errorf("FulfilledAt = %v, want nil for abandoned", got.FulfilledAt)
	}

	if err := db.AbandonIntention(it.ID); !errors.Is(err, ErrIntentionNotOpen) {
		t.Errorf("abandon again error = %v, want ErrIntentionNotOpen", err)
	}
}

package store

import (
	"testing"
)

func TestOnChange(t *testing.T) {
	db := testDB(t)

	var changes []Change
	db.OnChange(func(c Change) {
		changes = append(changes, c)
	})

	f := seedFriend(t, db, "Maya", TierInnerCircle)
	if len(changes) != 1 {
		t.Fatalf("got %d changes after create, want 1", len(changes))
	}
	if changes[0].Entity != "friend" || changes[0].Op != "create" || changes[0].ID != f.ID {
		t.Errorf("change = %+v, want friend create for %s", changes[0], f.ID)
	}

	w := &Weave{OccurredAt: 1000, Category: "call", Status: WeaveCompleted, GroupSize: 1}
	if err := db.CommitWeave(w, []ScoreAward{basicAward(f, 10)}); err != nil {
		t.Fatalf("CommitWeave: %v", err)
	}

	// Weave create plus friend update
	if len(changes) != 3 {
		t.Fatalf("got %d changes after weave, want 3", len(changes))
	}
	if changes[1].Entity != "weave" || changes[1].Op != "create" {
		t.Errorf("change = %+v, want weave create", changes[1])
	}
	if changes[2].Entity != "friend" || changes[2].Op != "update" {
		t.Errorf("change = %+v, want friend update", changes[2])
	}
}

func TestOnChange_MultipleListeners(t *testing.T) {
	db := testDB(t)

	var a, b int
	db.OnChange(func(Change) { a++ })
	db.OnChange(func(Change) { b++ })

	seedFriend(t, db, "Maya", TierInnerCircle)
	if a != 1 || b != 1 {
		t.Errorf("listener counts = %d/%d, want 1/1", a, b)
	}
}

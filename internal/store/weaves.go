package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Weave statuses.
const (
	WeaveCompleted = "completed"
	WeavePlanned   = "planned"
)

// Weave initiators. Empty means not recorded.
const (
	InitiatorSelf   = "self"
	InitiatorOther  = "other"
	InitiatorMutual = "mutual"
)

// Weave is one logged interaction. A weave can involve several friends;
// the per-friend point award lives on the link row.
type Weave struct {
	ID          string
	OccurredAt  int64  // unix ms
	Category    string // deep_talk, hangout, activity, meal, call, message, celebration, support
	Kind        string // legacy channel: meetup, call, video, text, letter
	DurationMin int
	Vibe        int // 0 = unrated, 1..5 rated
	GroupSize   int
	Status      string // completed or planned
	Initiator   string // "", self, other, mutual
	Importance  string // "", minor, notable, major, milestone
	Notes       string
	Reflection  string
	CreatedAt   int64
}

// FriendWeave is a weave seen from one friend's side, with the points
// that friend was awarded.
type FriendWeave struct {
	Weave
	Points float64
}

// CategoryStatUpdate carries a recomputed per-category outcome average.
type CategoryStatUpdate struct {
	Category   string
	OutcomeEMA float64
	RatedCount int
}

// ScoreAward is the fully computed result of scoring one weave for one
// friend. The engine computes these; CommitWeave only persists them.
type ScoreAward struct {
	FriendID string
	Points   float64

	StoredScore     float64
	LastUpdated     int64
	Resilience      float64
	Momentum        float64
	MomentumUpdated *int64
	RatedWeaveCount int

	// nil leaves the stored rhythm unchanged.
	TypicalIntervalDays *float64
	ToleranceWindowDays *float64

	// Non-empty marks that intention fulfilled in the same transaction.
	FulfillsIntention string

	// nil skips the category stats upsert.
	CategoryStat *CategoryStatUpdate
}

// CommitWeave persists a weave, its friend links, and every per-friend
// state change in a single transaction. Logging always clears dormancy
// for the involved friends. Sets w.ID if empty.
func (db *DB) CommitWeave(w *Weave, awards []ScoreAward) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin commit weave: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO weaves (id, occurred_at, category, kind, duration_min, vibe, group_size,
			status, initiator, importance, notes, reflection, created_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)
	`, w.ID, w.OccurredAt, w.Category, w.Kind, w.DurationMin, w.Vibe, w.GroupSize,
		w.Status, w.Initiator, w.Importance, w.Notes, w.Reflection, now); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert weave: %w", err)
	}

	for _, a := range awards {
		if _, err := tx.Exec(`
			INSERT INTO weave_friends (weave_id, friend_id, points) VALUES (?, ?, ?)
		`, w.ID, a.FriendID, a.Points); err != nil {
			tx.Rollback()
			return fmt.Errorf("link weave to friend %s: %w", a.FriendID, err)
		}

		if _, err := tx.Exec(`
			UPDATE friends SET stored_score = ?, last_updated = ?, resilience = ?,
				momentum = ?, momentum_updated = ?, rated_weave_count = ?,
				is_dormant = 0, dormant_since = NULL,
				typical_interval_days = COALESCE(?, typical_interval_days),
				tolerance_window_days = COALESCE(?, tolerance_window_days),
				updated_at = ?
			WHERE id = ?
		`, a.StoredScore, a.LastUpdated, a.Resilience,
			a.Momentum, a.MomentumUpdated, a.RatedWeaveCount,
			a.TypicalIntervalDays, a.ToleranceWindowDays,
			now, a.FriendID); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply award to friend %s: %w", a.FriendID, err)
		}

		if a.FulfillsIntention != "" {
			if _, err := tx.Exec(`
				UPDATE intentions SET status = 'fulfilled', fulfilled_at = ?
				WHERE id = ? AND status = 'open'
			`, w.OccurredAt, a.FulfillsIntention); err != nil {
				tx.Rollback()
				return fmt.Errorf("fulfill intention %s: %w", a.FulfillsIntention, err)
			}
		}

		if a.CategoryStat != nil {
			if _, err := tx.Exec(`
				INSERT INTO category_stats (friend_id, category, outcome_ema, rated_count, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (friend_id, category) DO UPDATE SET
					outcome_ema = excluded.outcome_ema,
					rated_count = excluded.rated_count,
					updated_at = excluded.updated_at
			`, a.FriendID, a.CategoryStat.Category, a.CategoryStat.OutcomeEMA,
				a.CategoryStat.RatedCount, now); err != nil {
				tx.Rollback()
				return fmt.Errorf("upsert category stat for %s: %w", a.FriendID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit weave: %w", err)
	}
	w.CreatedAt = now

	db.notify(Change{Entity: "weave", ID: w.ID, Op: "create"})
	for _, a := range awards {
		db.notify(Change{Entity: "friend", ID: a.FriendID, Op: "update"})
		if a.FulfillsIntention != "" {
			db.notify(Change{Entity: "intention", ID: a.FulfillsIntention, Op: "update"})
		}
	}
	return nil
}

// GetWeave returns a weave by ID, or nil if not found.
func (db *DB) GetWeave(id string) (*Weave, error) {
	row := db.QueryRow(`
		SELECT id, occurred_at, category, kind, duration_min, vibe, group_size,
			status, initiator, importance, notes, reflection, created_at
		FROM weaves WHERE id = ?
	`, id)
	w, err := scanWeave(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get weave: %w", err)
	}
	return w, nil
}

// FriendWeaves returns a friend's weaves newest first. limit <= 0 returns
// all of them.
func (db *DB) FriendWeaves(friendID string, limit int) ([]FriendWeave, error) {
	query := `
		SELECT w.id, w.occurred_at, w.category, w.kind, w.duration_min, w.vibe, w.group_size,
			w.status, w.initiator, w.importance, w.notes, w.reflection, w.created_at, wf.points
		FROM weaves w
		JOIN weave_friends wf ON wf.weave_id = w.id
		WHERE wf.friend_id = ?
		ORDER BY w.occurred_at DESC
	`
	args := []any{friendID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("friend weaves: %w", err)
	}
	defer rows.Close()
	return scanFriendWeaves(rows)
}

// FriendWeaveHistory returns a friend's completed weaves oldest first.
// Pattern analysis consumes this ordering directly.
func (db *DB) FriendWeaveHistory(friendID string) ([]FriendWeave, error) {
	rows, err := db.Query(`
		SELECT w.id, w.occurred_at, w.category, w.kind, w.duration_min, w.vibe, w.group_size,
			w.status, w.initiator, w.importance, w.notes, w.reflection, w.created_at, wf.points
		FROM weaves w
		JOIN weave_friends wf ON wf.weave_id = w.id
		WHERE wf.friend_id = ? AND w.status = 'completed'
		ORDER BY w.occurred_at ASC
	`, friendID)
	if err != nil {
		return nil, fmt.Errorf("friend weave history: %w", err)
	}
	defer rows.Close()
	return scanFriendWeaves(rows)
}

// CompletedWeaveCount returns how many completed weaves involve a friend.
func (db *DB) CompletedWeaveCount(friendID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM weaves w
		JOIN weave_friends wf ON wf.weave_id = w.id
		WHERE wf.friend_id = ? AND w.status = 'completed'
	`, friendID).Scan(&count)
	return count, err
}

// LastCompletedWeaveAt returns when a friend's most recent completed
// weave occurred, or nil if they have none.
func (db *DB) LastCompletedWeaveAt(friendID string) (*int64, error) {
	var at sql.NullInt64
	err := db.QueryRow(`
		SELECT MAX(w.occurred_at) FROM weaves w
		JOIN weave_friends wf ON wf.weave_id = w.id
		WHERE wf.friend_id = ? AND w.status = 'completed'
	`, friendID).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("last completed weave: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Int64, nil
}

// InitiatorCounts tallies who started a friend's completed weaves.
// Weaves with an unknown initiator are skipped.
func (db *DB) InitiatorCounts(friendID string) (self, other, mutual int, err error) {
	rows, err := db.Query(`
		SELECT w.initiator, COUNT(*) FROM weaves w
		JOIN weave_friends wf ON wf.weave_id = w.id
		WHERE wf.friend_id = ? AND w.status = 'completed' AND w.initiator != ''
		GROUP BY w.initiator
	`, friendID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("initiator counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var initiator string
		var count int
		if err := rows.Scan(&initiator, &count); err != nil {
			return 0, 0, 0, fmt.Errorf("scan initiator count: %w", err)
		}
		switch initiator {
		case "self":
			self = count
		case "other":
			other = count
		case "mutual":
			mutual = count
		}
	}
	return self, other, mutual, rows.Err()
}

// DeleteWeave removes a weave and its friend links. Scores already
// awarded are not rewound.
func (db *DB) DeleteWeave(id string) error {
	_, err := db.Exec("DELETE FROM weaves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete weave %s: %w", id, err)
	}

	db.notify(Change{Entity: "weave", ID: id, Op: "delete"})
	return nil
}

func scanWeave(row rowScanner) (*Weave, error) {
	var w Weave
	var category, kind, importance sql.NullString
	err := row.Scan(&w.ID, &w.OccurredAt, &category, &kind, &w.DurationMin, &w.Vibe,
		&w.GroupSize, &w.Status, &w.Initiator, &importance, &w.Notes, &w.Reflection,
		&w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Category = category.String
	w.Kind = kind.String
	w.Importance = importance.String
	return &w, nil
}

func scanFriendWeaves(rows *sql.Rows) ([]FriendWeave, error) {
	var weaves []FriendWeave
	for rows.Next() {
		var fw FriendWeave
		var category, kind, importance sql.NullString
		if err := rows.Scan(&fw.ID, &fw.OccurredAt, &category, &kind, &fw.DurationMin,
			&fw.Vibe, &fw.GroupSize, &fw.Status, &fw.Initiator, &importance,
			&fw.Notes, &fw.Reflection, &fw.CreatedAt, &fw.Points); err != nil {
			return nil, fmt.Errorf("scan friend weave: %w", err)
		}
		fw.Category = category.String
		fw.Kind = kind.String
		fw.Importance = importance.String
		weaves = append(weaves, fw)
	}
	return weaves, rows.Err()
}

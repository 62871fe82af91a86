package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tiers order a friendship by closeness. Tier drives decay speed,
// attention thresholds, and network weighting.
const (
	TierInnerCircle  = "inner_circle"
	TierCloseFriends = "close_friends"
	TierCommunity    = "community"
)

// ValidTier reports whether s names a known tier.
func ValidTier(s string) bool {
	switch s {
	case TierInnerCircle, TierCloseFriends, TierCommunity:
		return true
	}
	return false
}

// ValidArchetype reports whether s names a known archetype.
// The empty string is allowed: archetype is optional.
func ValidArchetype(s string) bool {
	switch s {
	case "", "confidant", "adventurer", "thinker", "neighbor", "kindred":
		return true
	}
	return false
}

// Friend is a tracked person with their health-model state.
type Friend struct {
	ID        string
	Name      string
	Tier      string // inner_circle, close_friends, community
	Archetype string // optional flavor: confidant, adventurer, thinker, neighbor, kindred

	StoredScore     float64 // score as of LastUpdated, before decay
	LastUpdated     int64   // unix ms of the last stored-score write
	Resilience      float64 // decay divisor, drifts with rated vibes
	Momentum        float64 // display bonus from the most recent weave
	MomentumUpdated *int64  // unix ms momentum was last set
	RatedWeaveCount int

	IsDormant    bool
	DormantSince *int64

	TypicalIntervalDays *float64 // learned average gap between weaves
	ToleranceWindowDays *float64 // learned grace window before fast decay

	CreatedAt int64
	UpdatedAt int64
}

// CreateFriend inserts a new friend with fresh health state. A new friend
// starts at score 50 with neutral resilience, no momentum, and no learned
// rhythm. Sets ID if empty.
func (db *DB) CreateFriend(f *Friend) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT INTO friends (id, name, tier, archetype, stored_score, last_updated, resilience,
			momentum, momentum_updated, rated_weave_count, is_dormant, dormant_since,
			typical_interval_days, tolerance_window_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, 0, 0, NULL, NULL, NULL, ?, ?)
	`, f.ID, f.Name, f.Tier, f.Archetype, 50.0, now, 1.0, 0.0, now, now)
	if err != nil {
		return fmt.Errorf("create friend: %w", err)
	}

	f.StoredScore = 50.0
	f.LastUpdated = now
	f.Resilience = 1.0
	f.Momentum = 0
	f.MomentumUpdated = nil
	f.RatedWeaveCount = 0
	f.IsDormant = false
	f.CreatedAt = now
	f.UpdatedAt = now

	db.notify(Change{Entity: "friend", ID: f.ID, Op: "create"})
	return nil
}

// GetFriend returns a friend by ID, or nil if not found.
func (db *DB) GetFriend(id string) (*Friend, error) {
	row := db.QueryRow(`
		SELECT id, name, tier, archetype, stored_score, last_updated, resilience,
			momentum, momentum_updated, rated_weave_count, is_dormant, dormant_since,
			typical_interval_days, tolerance_window_days, created_at, updated_at
		FROM friends WHERE id = ?
	`, id)
	f, err := scanFriend(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get friend: %w", err)
	}
	return f, nil
}

// GetFriendByName returns a friend by exact name, or nil if not found.
// Names are not unique; the most recently created wins.
func (db *DB) GetFriendByName(name string) (*Friend, error) {
	row := db.QueryRow(`
		SELECT id, name, tier, archetype, stored_score, last_updated, resilience,
			momentum, momentum_updated, rated_weave_count, is_dormant, dormant_since,
			typical_interval_days, tolerance_window_days, created_at, updated_at
		FROM friends WHERE name = ?
		ORDER BY created_at DESC LIMIT 1
	`, name)
	f, err := scanFriend(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get friend by name: %w", err)
	}
	return f, nil
}

// ListFriends returns all friends ordered by name.
func (db *DB) ListFriends() ([]Friend, error) {
	rows, err := db.Query(`
		SELECT id, name, tier, archetype, stored_score, last_updated, resilience,
			momentum, momentum_updated, rated_weave_count, is_dormant, dormant_since,
			typical_interval_days, tolerance_window_days, created_at, updated_at
		FROM friends ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return scanFriends(rows)
}

// ListFriendsByTier returns all friends in a tier ordered by name.
func (db *DB) ListFriendsByTier(tier string) ([]Friend, error) {
	rows, err := db.Query(`
		SELECT id, name, tier, archetype, stored_score, last_updated, resilience,
			momentum, momentum_updated, rated_weave_count, is_dormant, dormant_since,
			typical_interval_days, tolerance_window_days, created_at, updated_at
		FROM friends WHERE tier = ? ORDER BY name
	`, tier)
	if err != nil {
		return nil, fmt.Errorf("list friends by tier: %w", err)
	}
	defer rows.Close()
	return scanFriends(rows)
}

// UpdateFriend updates a friend's profile fields (name, tier, archetype).
// Health state is only written through CommitWeave and the dormancy sweep.
func (db *DB) UpdateFriend(f *Friend) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE friends SET name = ?, tier = ?, archetype = ?, updated_at = ?
		WHERE id = ?
	`, f.Name, f.Tier, f.Archetype, now, f.ID)
	if err != nil {
		return fmt.Errorf("update friend: %w", err)
	}
	f.UpdatedAt = now

	db.notify(Change{Entity: "friend", ID: f.ID, Op: "update"})
	return nil
}

// UpdateFriendRhythm stores a recomputed typical interval and tolerance
// window after a pattern recompute.
func (db *DB) UpdateFriendRhythm(id string, intervalDays, windowDays float64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE friends SET typical_interval_days = ?, tolerance_window_days = ?, updated_at = ?
		WHERE id = ?
	`, intervalDays, windowDays, now, id)
	if err != nil {
		return fmt.Errorf("update friend rhythm: %w", err)
	}

	db.notify(Change{Entity: "friend", ID: id, Op: "update"})
	return nil
}

// SetDormant marks the given friends dormant as of since, in one
// transaction. Friends already dormant keep their original dormant_since.
func (db *DB) SetDormant(ids []string, since int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin set dormant: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, id := range ids {
		if _, err := tx.Exec(`
			UPDATE friends SET is_dormant = 1, dormant_since = ?, updated_at = ?
			WHERE id = ? AND is_dormant = 0
		`, since, now, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("set dormant %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set dormant: %w", err)
	}

	for _, id := range ids {
		db.notify(Change{Entity: "friend", ID: id, Op: "update"})
	}
	return nil
}

// WakeDormant clears the dormant flag on the given friends, in one
// transaction. Friends already active are left untouched.
func (db *DB) WakeDormant(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin wake dormant: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, id := range ids {
		if _, err := tx.Exec(`
			UPDATE friends SET is_dormant = 0, dormant_since = NULL, updated_at = ?
			WHERE id = ? AND is_dormant = 1
		`, now, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("wake dormant %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wake dormant: %w", err)
	}

	for _, id := range ids {
		db.notify(Change{Entity: "friend", ID: id, Op: "update"})
	}
	return nil
}

// ApplyDormancy applies a sweep's computed transitions in one
// transaction: marked friends become dormant as of since, woken friends
// return to active. Either set may be empty.
func (db *DB) ApplyDormancy(marked, woken []string, since int64) error {
	if len(marked) == 0 && len(woken) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin apply dormancy: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, id := range marked {
		if _, err := tx.Exec(`
			UPDATE friends SET is_dormant = 1, dormant_since = ?, updated_at = ?
			WHERE id = ? AND is_dormant = 0
		`, since, now, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("set dormant %s: %w", id, err)
		}
	}
	for _, id := range woken {
		if _, err := tx.Exec(`
			UPDATE friends SET is_dormant = 0, dormant_since = NULL, updated_at = ?
			WHERE id = ? AND is_dormant = 1
		`, now, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("wake dormant %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply dormancy: %w", err)
	}

	for _, id := range marked {
		db.notify(Change{Entity: "friend", ID: id, Op: "update"})
	}
	for _, id := range woken {
		db.notify(Change{Entity: "friend", ID: id, Op: "update"})
	}
	return nil
}

// DeleteFriend removes a friend. Weave links, intentions, and category
// stats cascade; weaves left with no remaining friends are cleaned up.
func (db *DB) DeleteFriend(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete friend: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM friends WHERE id = ?", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete friend %s: %w", id, err)
	}

	if _, err := tx.Exec(`
		DELETE FROM weaves WHERE id NOT IN (SELECT DISTINCT weave_id FROM weave_friends)
	`); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete orphan weaves: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete friend: %w", err)
	}

	db.notify(Change{Entity: "friend", ID: id, Op: "delete"})
	return nil
}

// CountFriends returns the total number of friends.
func (db *DB) CountFriends() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM friends").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFriend(row rowScanner) (*Friend, error) {
	var f Friend
	var isDormant int
	var momentumUpdated, dormantSince sql.NullInt64
	var typicalInterval, toleranceWindow sql.NullFloat64
	err := row.Scan(&f.ID, &f.Name, &f.Tier, &f.Archetype, &f.StoredScore, &f.LastUpdated,
		&f.Resilience, &f.Momentum, &momentumUpdated, &f.RatedWeaveCount,
		&isDormant, &dormantSince, &typicalInterval, &toleranceWindow,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.IsDormant = isDormant != 0
	if momentumUpdated.Valid {
		f.MomentumUpdated = &momentumUpdated.Int64
	}
	if dormantSince.Valid {
		f.DormantSince = &dormantSince.Int64
	}
	if typicalInterval.Valid {
		f.TypicalIntervalDays = &typicalInterval.Float64
	}
	if toleranceWindow.Valid {
		f.ToleranceWindowDays = &toleranceWindow.Float64
	}
	return &f, nil
}

func scanFriends(rows *sql.Rows) ([]Friend, error) {
	var friends []Friend
	for rows.Next() {
		f, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, *f)
	}
	return friends, rows.Err()
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Intention statuses.
const (
	IntentionOpen      = "open"
	IntentionFulfilled = "fulfilled"
	IntentionAbandoned = "abandoned"
)

// ErrIntentionNotOpen is returned when fulfilling or abandoning an
// intention that has already been resolved.
var ErrIntentionNotOpen = errors.New("intention is not open")

// Intention is a declared plan to reconnect with a friend. An open
// intention shields the friend from dormancy until it resolves.
type Intention struct {
	ID          string
	FriendID    string
	Category    string
	Note        string
	DueAt       *int64
	Status      string
	CreatedAt   int64
	FulfilledAt *int64
}

// CreateIntention inserts an open intention and wakes the friend if they
// were dormant, in one transaction. Sets it.ID if empty.
func (db *DB) CreateIntention(it *Intention) error {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create intention: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO intentions (id, friend_id, category, note, due_at, status, created_at, fulfilled_at)
		VALUES (?, ?, ?, ?, ?, 'open', ?, NULL)
	`, it.ID, it.FriendID, it.Category, it.Note, it.DueAt, now); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert intention: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE friends SET is_dormant = 0, dormant_since = NULL, updated_at = ?
		WHERE id = ? AND is_dormant = 1
	`, now, it.FriendID); err != nil {
		tx.Rollback()
		return fmt.Errorf("wake friend %s: %w", it.FriendID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create intention: %w", err)
	}

	it.Status = IntentionOpen
	it.CreatedAt = now
	it.FulfilledAt = nil

	db.notify(Change{Entity: "intention", ID: it.ID, Op: "create"})
	db.notify(Change{Entity: "friend", ID: it.FriendID, Op: "update"})
	return nil
}

// GetIntention returns an intention by ID, or nil if not found.
func (db *DB) GetIntention(id string) (*Intention, error) {
	row := db.QueryRow(`
		SELECT id, friend_id, category, note, due_at, status, created_at, fulfilled_at
		FROM intentions WHERE id = ?
	`, id)
	it, err := scanIntention(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intention: %w", err)
	}
	return it, nil
}

// ListIntentions returns intentions filtered by friend and status.
// Either filter may be empty. Oldest first.
func (db *DB) ListIntentions(friendID, status string) ([]Intention, error) {
	query := `
		SELECT id, friend_id, category, note, due_at, status, created_at, fulfilled_at
		FROM intentions WHERE 1=1
	`
	var args []any
	if friendID != "" {
		query += " AND friend_id = ?"
		args = append(args, friendID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intentions: %w", err)
	}
	defer rows.Close()

	var intentions []Intention
	for rows.Next() {
		it, err := scanIntention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intention: %w", err)
		}
		intentions = append(intentions, *it)
	}
	return intentions, rows.Err()
}

// OldestOpenIntention returns a friend's oldest open intention, or nil
// if they have none.
func (db *DB) OldestOpenIntention(friendID string) (*Intention, error) {
	row := db.QueryRow(`
		SELECT id, friend_id, category, note, due_at, status, created_at, fulfilled_at
		FROM intentions WHERE friend_id = ? AND status = 'open'
		ORDER BY created_at ASC LIMIT 1
	`, friendID)
	it, err := scanIntention(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("oldest open intention: %w", err)
	}
	return it, nil
}

// FriendsWithOpenIntentions returns the set of friend IDs holding at
// least one open intention. The dormancy sweep consults this.
func (db *DB) FriendsWithOpenIntentions() (map[string]bool, error) {
	rows, err := db.Query(`SELECT DISTINCT friend_id FROM intentions WHERE status = 'open'`)
	if err != nil {
		return nil, fmt.Errorf("friends with open intentions: %w", err)
	}
	defer rows.Close()

	shielded := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shielded friend: %w", err)
		}
		shielded[id] = true
	}
	return shielded, rows.Err()
}

// FulfillIntention marks an open intention fulfilled. Returns an error
// if the intention is not open.
func (db *DB) FulfillIntention(id string) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE intentions SET status = 'fulfilled', fulfilled_at = ?
		WHERE id = ? AND status = 'open'
	`, now, id)
	if err != nil {
		return fmt.Errorf("fulfill intention %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("intention %s: %w", id, ErrIntentionNotOpen)
	}

	db.notify(Change{Entity: "intention", ID: id, Op: "update"})
	return nil
}

// AbandonIntention marks an open intention abandoned. Returns an error
// if the intention is not open.
func (db *DB) AbandonIntention(id string) error {
	result, err := db.Exec(`
		UPDATE intentions SET status = 'abandoned'
		WHERE id = ? AND status = 'open'
	`, id)
	if err != nil {
		return fmt.Errorf("abandon intention %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("intention %s: %w", id, ErrIntentionNotOpen)
	}

	db.notify(Change{Entity: "intention", ID: id, Op: "update"})
	return nil
}

func scanIntention(row rowScanner) (*Intention, error) {
	var it Intention
	var dueAt, fulfilledAt sql.NullInt64
	err := row.Scan(&it.ID, &it.FriendID, &it.Category, &it.Note, &dueAt,
		&it.Status, &it.CreatedAt, &fulfilledAt)
	if err != nil {
		return nil, err
	}
	if dueAt.Valid {
		it.DueAt = &dueAt.Int64
	}
	if fulfilledAt.Valid {
		it.FulfilledAt = &fulfilledAt.Int64
	}
	return &it, nil
}

package store

import (
	"database/sql"
	"fmt"
)

// CategoryStat is the learned outcome average for one friend and
// category. OutcomeEMA tracks rated vibes mapped onto [0, 1]; writes
// happen inside CommitWeave.
type CategoryStat struct {
	FriendID   string
	Category   string
	OutcomeEMA float64
	RatedCount int
	UpdatedAt  int64
}

// GetCategoryStat returns the stat for a friend and category, or nil if
// no rated weave has touched the pair yet.
func (db *DB) GetCategoryStat(friendID, category string) (*CategoryStat, error) {
	var s CategoryStat
	err := db.QueryRow(`
		SELECT friend_id, category, outcome_ema, rated_count, updated_at
		FROM category_stats WHERE friend_id = ? AND category = ?
	`, friendID, category).Scan(&s.FriendID, &s.Category, &s.OutcomeEMA, &s.RatedCount, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category stat: %w", err)
	}
	return &s, nil
}

// ListCategoryStats returns all of a friend's category stats, best
// outcome first.
func (db *DB) ListCategoryStats(friendID string) ([]CategoryStat, error) {
	rows, err := db.Query(`
		SELECT friend_id, category, outcome_ema, rated_count, updated_at
		FROM category_stats WHERE friend_id = ?
		ORDER BY outcome_ema DESC
	`, friendID)
	if err != nil {
		return nil, fmt.Errorf("list category stats: %w", err)
	}
	defer rows.Close()

	var stats []CategoryStat
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.FriendID, &s.Category, &s.OutcomeEMA, &s.RatedCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

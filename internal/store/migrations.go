package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "friends: tracked people and their health state",
		SQL: `
CREATE TABLE friends (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL,
    tier                  TEXT NOT NULL CHECK (tier IN ('inner_circle', 'close_friends', 'community')),
    archetype             TEXT NOT NULL DEFAULT '' CHECK (archetype IN ('', 'confidant', 'adventurer', 'thinker', 'neighbor', 'kindred')),

    -- Health model state
    stored_score          REAL NOT NULL DEFAULT 50,
    last_updated          INTEGER NOT NULL,
    resilience            REAL NOT NULL DEFAULT 1.0,
    momentum              REAL NOT NULL DEFAULT 0,
    momentum_updated      INTEGER,
    rated_weave_count     INTEGER NOT NULL DEFAULT 0,

    -- Dormancy
    is_dormant            INTEGER NOT NULL DEFAULT 0,
    dormant_since         INTEGER,

    -- Learned rhythm
    typical_interval_days REAL,
    tolerance_window_days REAL,

    created_at            INTEGER NOT NULL,
    updated_at            INTEGER NOT NULL
);

CREATE INDEX idx_friends_tier    ON friends(tier);
CREATE INDEX idx_friends_dormant ON friends(is_dormant);
`,
	},
	{
		Version:     2,
		Description: "weaves: logged interactions and their friend links",
		SQL: `
CREATE TABLE weaves (
    id          TEXT PRIMARY KEY,
    occurred_at INTEGER NOT NULL,
    category    TEXT,
    kind        TEXT,
    duration_min INTEGER NOT NULL DEFAULT 0,
    vibe        INTEGER NOT NULL DEFAULT 0 CHECK (vibe BETWEEN 0 AND 5),
    group_size  INTEGER NOT NULL DEFAULT 1,
    status      TEXT NOT NULL DEFAULT 'completed' CHECK (status IN ('completed', 'planned')),
    initiator   TEXT NOT NULL DEFAULT '' CHECK (initiator IN ('', 'self', 'other', 'mutual')),
    importance  TEXT,
    notes       TEXT NOT NULL DEFAULT '',
    reflection  TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_weaves_occurred ON weaves(occurred_at DESC);
CREATE INDEX idx_weaves_status   ON weaves(status);

CREATE TABLE weave_friends (
    weave_id  TEXT NOT NULL,
    friend_id TEXT NOT NULL,
    points    REAL NOT NULL DEFAULT 0,

    PRIMARY KEY (weave_id, friend_id),
    FOREIGN KEY (weave_id)  REFERENCES weaves(id)  ON DELETE CASCADE,
    FOREIGN KEY (friend_id) REFERENCES friends(id) ON DELETE CASCADE
);

CREATE INDEX idx_weave_friends_friend ON weave_friends(friend_id);
`,
	},
	{
		Version:     3,
		Description: "intentions: planned reconnections that shield dormancy",
		SQL: `
CREATE TABLE intentions (
    id           TEXT PRIMARY KEY,
    friend_id    TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    note         TEXT NOT NULL DEFAULT '',
    due_at       INTEGER,
    status       TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'fulfilled', 'abandoned')),
    created_at   INTEGER NOT NULL,
    fulfilled_at INTEGER,

    FOREIGN KEY (friend_id) REFERENCES friends(id) ON DELETE CASCADE
);

CREATE INDEX idx_intentions_friend ON intentions(friend_id, status);
`,
	},
	{
		Version:     4,
		Description: "category_stats: per-friend outcome averages by category",
		SQL: `
CREATE TABLE category_stats (
    friend_id   TEXT NOT NULL,
    category    TEXT NOT NULL,
    outcome_ema REAL NOT NULL DEFAULT 0.5,
    rated_count INTEGER NOT NULL DEFAULT 0,
    updated_at  INTEGER NOT NULL,

    PRIMARY KEY (friend_id, category),
    FOREIGN KEY (friend_id) REFERENCES friends(id) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

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
		Description: "items: captured knowledge objects plus tags, annotations, connections",
		SQL: `
CREATE TABLE items (
    id                      INTEGER PRIMARY KEY,
    uuid                    TEXT NOT NULL UNIQUE,
    title                   TEXT NOT NULL,
    status                  TEXT NOT NULL DEFAULT 'inbox' CHECK (status IN ('inbox', 'active', 'archived', 'dismissed')),

    -- Derived-eligibility counters, maintained on annotation/connection insert
    annotation_count        INTEGER NOT NULL DEFAULT 0,
    connection_count        INTEGER NOT NULL DEFAULT 0,

    -- Resurfacing state, owned by the resurfacing service
    resurface_count         INTEGER NOT NULL DEFAULT 0,
    resurface_interval_days INTEGER NOT NULL DEFAULT 7,
    resurface_paused        INTEGER NOT NULL DEFAULT 0,
    last_engaged_at         INTEGER,
    last_resurfaced_at      INTEGER,

    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL
);

CREATE INDEX idx_items_status     ON items(status);
CREATE INDEX idx_items_created_at ON items(created_at DESC);

CREATE TABLE item_tags (
    item_id    INTEGER NOT NULL,
    tag        TEXT NOT NULL,
    UNIQUE (item_id, tag),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX idx_item_tags_tag ON item_tags(tag);

CREATE TABLE annotations (
    id         INTEGER PRIMARY KEY,
    item_id    INTEGER NOT NULL,
    body       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX idx_annotations_item ON annotations(item_id, created_at DESC);

CREATE TABLE connections (
    id         INTEGER PRIMARY KEY,
    from_item  INTEGER NOT NULL,
    to_item    INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (from_item) REFERENCES items(id) ON DELETE CASCADE,
    FOREIGN KEY (to_item)   REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX idx_connections_from ON connections(from_item);
CREATE INDEX idx_connections_to   ON connections(to_item);
`,
	},
	{
		Version:     2,
		Description: "boards: item groupings with per-board nudge frequency",
		SQL: `
CREATE TABLE boards (
    id                    INTEGER PRIMARY KEY,
    uuid                  TEXT NOT NULL UNIQUE,
    title                 TEXT NOT NULL,
    -- -1 disables nudges for items exclusively on this board
    nudge_frequency_hours INTEGER NOT NULL DEFAULT 24,
    created_at            INTEGER NOT NULL
);

CREATE TABLE board_items (
    board_id INTEGER NOT NULL,
    item_id  INTEGER NOT NULL,
    UNIQUE (board_id, item_id),
    FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id)  REFERENCES items(id)  ON DELETE CASCADE
);

CREATE INDEX idx_board_items_item ON board_items(item_id);
`,
	},
	{
		Version:     3,
		Description: "courses: ordered lecture sequences over items",
		SQL: `
CREATE TABLE courses (
    id         INTEGER PRIMARY KEY,
    uuid       TEXT NOT NULL UNIQUE,
    title      TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE course_lectures (
    course_id    INTEGER NOT NULL,
    item_id      INTEGER NOT NULL,
    position     INTEGER NOT NULL,
    completed_at INTEGER,
    UNIQUE (course_id, position),
    FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id)   REFERENCES items(id)   ON DELETE CASCADE
);
`,
	},
	{
		Version:     4,
		Description: "nudges: append-only proactive prompt log",
		SQL: `
CREATE TABLE nudges (
    id            INTEGER PRIMARY KEY,
    uuid          TEXT NOT NULL UNIQUE,
    type          TEXT NOT NULL CHECK (type IN ('resurface', 'stale_inbox', 'connection_prompt', 'streak', 'continue_course')),
    message       TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'shown', 'acted_on', 'dismissed')),
    target_item   TEXT,
    related_items TEXT,
    created_at    INTEGER NOT NULL,
    shown_at      INTEGER,
    resolved_at   INTEGER
);

CREATE INDEX idx_nudges_type_status ON nudges(type, status);
CREATE INDEX idx_nudges_created     ON nudges(created_at DESC);
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

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Nudge types, one per generator.
const (
	NudgeResurface        = "resurface"
	NudgeStaleInbox       = "stale_inbox"
	NudgeConnectionPrompt = "connection_prompt"
	NudgeStreak           = "streak"
	NudgeContinueCourse   = "continue_course"
)

// Nudge statuses. pending -> shown -> acted_on | dismissed.
const (
	NudgePending   = "pending"
	NudgeShown     = "shown"
	NudgeActedOn   = "acted_on"
	NudgeDismissed = "dismissed"
)

// Nudge is a single proactive prompt. Rows are append-only: once created,
// only the status (and its timestamps) ever changes.
type Nudge struct {
	ID             int64
	UUID           string
	Type           string
	Message        string
	Status         string
	TargetItem     string   // item UUID, empty when the nudge has no single target
	RelatedItemIDs []string // item UUIDs used for cluster/board cooldown matching
	CreatedAt      int64
	ShownAt        *int64
	ResolvedAt     *int64
}

// InsertNudge appends a new pending nudge to the log.
func (db *DB) InsertNudge(n *Nudge) error {
	now := time.Now().UnixMilli()
	n.UUID = uuid.New().String()
	n.Status = NudgePending
	n.CreatedAt = now

	related, err := json.Marshal(n.RelatedItemIDs)
	if err != nil {
		return fmt.Errorf("marshal related items: %w", err)
	}

	result, err := db.Exec(`
		INSERT INTO nudges (uuid, type, message, status, target_item, related_items, created_at)
		VALUES (?, ?, ?, 'pending', NULLIF(?, ''), ?, ?)
	`, n.UUID, n.Type, n.Message, n.TargetItem, string(related), now)
	if err != nil {
		return fmt.Errorf("insert nudge: %w", err)
	}

	id, _ := result.LastInsertId()
	n.ID = id
	return nil
}

// GetNudgeByUUID returns a nudge by its public UUID, or nil if not found.
func (db *DB) GetNudgeByUUID(id string) (*Nudge, error) {
	rows, err := db.Query(`
		SELECT id, uuid, type, message, status, target_item, related_items, created_at, shown_at, resolved_at
		FROM nudges WHERE uuid = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get nudge: %w", err)
	}
	defer rows.Close()

	nudges, err := scanNudges(rows)
	if err != nil {
		return nil, err
	}
	if len(nudges) == 0 {
		return nil, nil
	}
	return &nudges[0], nil
}

// CurrentNudge returns the most recent nudge still in pending or shown
// state, or nil. This is the record the UI renders.
func (db *DB) CurrentNudge() (*Nudge, error) {
	rows, err := db.Query(`
		SELECT id, uuid, type, message, status, target_item, related_items, created_at, shown_at, resolved_at
		FROM nudges WHERE status IN ('pending', 'shown')
		ORDER BY created_at DESC, id DESC LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("current nudge: %w", err)
	}
	defer rows.Close()

	nudges, err := scanNudges(rows)
	if err != nil {
		return nil, err
	}
	if len(nudges) == 0 {
		return nil, nil
	}
	return &nudges[0], nil
}

// HasOpenNudge reports whether a nudge of the given type is pending or shown.
func (db *DB) HasOpenNudge(typ string) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM nudges WHERE type = ? AND status IN ('pending', 'shown')
	`, typ).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has open nudge: %w", err)
	}
	return count > 0, nil
}

// CountNudgesCreatedSince returns how many nudges were created at or after
// the cutoff, regardless of status.
func (db *DB) CountNudgesCreatedSince(cutoff int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM nudges WHERE created_at >= ?`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nudges since: %w", err)
	}
	return count, nil
}

// CountActedOnSince returns how many nudges created at or after the cutoff
// ended up acted on. Drives the high-engagement budget override.
func (db *DB) CountActedOnSince(cutoff int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM nudges WHERE status = 'acted_on' AND created_at >= ?
	`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count acted on since: %w", err)
	}
	return count, nil
}

// DismissedNudgesSince returns nudges of the given type dismissed at or
// after the cutoff, for cooldown matching.
func (db *DB) DismissedNudgesSince(typ string, cutoff int64) ([]Nudge, error) {
	rows, err := db.Query(`
		SELECT id, uuid, type, message, status, target_item, related_items, created_at, shown_at, resolved_at
		FROM nudges WHERE type = ? AND status = 'dismissed' AND resolved_at >= ?
		ORDER BY resolved_at DESC, id DESC
	`, typ, cutoff)
	if err != nil {
		return nil, fmt.Errorf("dismissed nudges since: %w", err)
	}
	defer rows.Close()
	return scanNudges(rows)
}

// ListRecentNudges returns the newest nudges first, up to limit.
func (db *DB) ListRecentNudges(limit int) ([]Nudge, error) {
	rows, err := db.Query(`
		SELECT id, uuid, type, message, status, target_item, related_items, created_at, shown_at, resolved_at
		FROM nudges ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent nudges: %w", err)
	}
	defer rows.Close()
	return scanNudges(rows)
}

// MarkNudgeShown transitions a pending nudge to shown. Called by the UI
// boundary on first display. Showing an already-shown nudge is a no-op.
func (db *DB) MarkNudgeShown(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE nudges SET status = 'shown', shown_at = ?
		WHERE uuid = ? AND status = 'pending'
	`, now, id)
	if err != nil {
		return fmt.Errorf("mark nudge shown: %w", err)
	}
	return nil
}

// MarkNudgeActedOn transitions a pending or shown nudge to the terminal
// acted_on state.
func (db *DB) MarkNudgeActedOn(id string) error {
	return db.resolveNudge(id, NudgeActedOn)
}

// MarkNudgeDismissed transitions a pending or shown nudge to the terminal
// dismissed state. The dismissal time feeds the cooldown windows.
func (db *DB) MarkNudgeDismissed(id string) error {
	return db.resolveNudge(id, NudgeDismissed)
}

func (db *DB) resolveNudge(id, status string) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE nudges SET status = ?, resolved_at = ?
		WHERE uuid = ? AND status IN ('pending', 'shown')
	`, status, now, id)
	if err != nil {
		return fmt.Errorf("resolve nudge: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no open nudge %s", id)
	}
	return nil
}

// NudgeActionStat is a per-type tally of terminal nudge outcomes, shown on
// the settings surface.
type NudgeActionStat struct {
	Type      string `json:"type"`
	ActedOn   int    `json:"acted_on"`
	Dismissed int    `json:"dismissed"`
}

// NudgeActionStats returns acted-on and dismissed counts grouped by type.
func (db *DB) NudgeActionStats() ([]NudgeActionStat, error) {
	rows, err := db.Query(`
		SELECT type,
			SUM(CASE WHEN status = 'acted_on' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'dismissed' THEN 1 ELSE 0 END)
		FROM nudges GROUP BY type ORDER BY type
	`)
	if err != nil {
		return nil, fmt.Errorf("nudge action stats: %w", err)
	}
	defer rows.Close()

	var stats []NudgeActionStat
	for rows.Next() {
		var s NudgeActionStat
		if err := rows.Scan(&s.Type, &s.ActedOn, &s.Dismissed); err != nil {
			return nil, fmt.Errorf("scan nudge stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scanNudges(rows *sql.Rows) ([]Nudge, error) {
	var nudges []Nudge
	for rows.Next() {
		var n Nudge
		var target, related sql.NullString
		var shownAt, resolvedAt sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UUID, &n.Type, &n.Message, &n.Status,
			&target, &related, &n.CreatedAt, &shownAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan nudge: %w", err)
		}
		n.TargetItem = target.String
		if related.Valid && related.String != "" && related.String != "null" {
			if err := json.Unmarshal([]byte(related.String), &n.RelatedItemIDs); err != nil {
				return nil, fmt.Errorf("unmarshal related items: %w", err)
			}
		}
		if shownAt.Valid {
			n.ShownAt = &shownAt.Int64
		}
		if resolvedAt.Valid {
			n.ResolvedAt = &resolvedAt.Int64
		}
		nudges = append(nudges, n)
	}
	return nudges, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item statuses.
const (
	StatusInbox     = "inbox"
	StatusActive    = "active"
	StatusArchived  = "archived"
	StatusDismissed = "dismissed"
)

// Item represents a captured knowledge object.
type Item struct {
	ID              int64
	UUID            string
	Title           string
	Status          string
	AnnotationCount int
	ConnectionCount int

	// Resurfacing state, written only by the resurfacing service.
	ResurfaceCount        int
	ResurfaceIntervalDays int
	ResurfacePaused       bool
	LastEngagedAt         *int64
	LastResurfacedAt      *int64

	CreatedAt int64
	UpdatedAt int64
}

// ResurfacingEligible reports whether the item qualifies for the
// spaced-resurfacing queue: at least one annotation or connection.
func (i *Item) ResurfacingEligible() bool {
	return i.AnnotationCount > 0 || i.ConnectionCount > 0
}

// Annotation is a user note attached to an item.
type Annotation struct {
	ID        int64
	ItemID    int64
	Body      string
	CreatedAt int64
}

const itemColumns = `id, uuid, title, status, annotation_count, connection_count,
	resurface_count, resurface_interval_days, resurface_paused,
	last_engaged_at, last_resurfaced_at, created_at, updated_at`

// CreateItem inserts a new item in inbox status and assigns its UUID.
func (db *DB) CreateItem(title string) (*Item, error) {
	now := time.Now().UnixMilli()
	id := uuid.New().String()

	result, err := db.Exec(`
		INSERT INTO items (uuid, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, id, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	rowID, _ := result.LastInsertId()
	return &Item{
		ID:                    rowID,
		UUID:                  id,
		Title:                 title,
		Status:                StatusInbox,
		ResurfaceIntervalDays: 7,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// GetItemByUUID returns an item by its public UUID, or nil if not found.
func (db *DB) GetItemByUUID(id string) (*Item, error) {
	row := db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE uuid = ?`, id)
	return scanItemRow(row)
}

// GetItemByID returns an item by its database ID, or nil if not found.
func (db *DB) GetItemByID(id int64) (*Item, error) {
	row := db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItemRow(row)
}

// SetItemStatus updates the item's status and bumps updated_at.
func (db *DB) SetItemStatus(id int64, status string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return fmt.Errorf("set item status: %w", err)
	}
	return nil
}

// TouchItem bumps updated_at, marking recent activity on the item.
func (db *DB) TouchItem(id int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE items SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch item: %w", err)
	}
	return nil
}

// AddAnnotation attaches a note to an item and bumps its annotation count
// and updated_at.
func (db *DB) AddAnnotation(itemID int64, body string) (*Annotation, error) {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO annotations (item_id, body, created_at) VALUES (?, ?, ?)
	`, itemID, body, now)
	if err != nil {
		return nil, fmt.Errorf("add annotation: %w", err)
	}
	if _, err := db.Exec(`
		UPDATE items SET annotation_count = annotation_count + 1, updated_at = ? WHERE id = ?
	`, now, itemID); err != nil {
		return nil, fmt.Errorf("bump annotation count: %w", err)
	}

	id, _ := result.LastInsertId()
	return &Annotation{ID: id, ItemID: itemID, Body: body, CreatedAt: now}, nil
}

// LatestAnnotation returns the most recent annotation on an item, or nil.
func (db *DB) LatestAnnotation(itemID int64) (*Annotation, error) {
	var a Annotation
	err := db.QueryRow(`
		SELECT id, item_id, body, created_at FROM annotations
		WHERE item_id = ? ORDER BY created_at DESC, id DESC LIMIT 1
	`, itemID).Scan(&a.ID, &a.ItemID, &a.Body, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest annotation: %w", err)
	}
	return &a, nil
}

// AddConnection links two items and bumps the connection count and
// updated_at on both ends.
func (db *DB) AddConnection(fromID, toID int64) error {
	now := time.Now().UnixMilli()
	if _, err := db.Exec(`
		INSERT INTO connections (from_item, to_item, created_at) VALUES (?, ?, ?)
	`, fromID, toID, now); err != nil {
		return fmt.Errorf("add connection: %w", err)
	}
	if _, err := db.Exec(`
		UPDATE items SET connection_count = connection_count + 1, updated_at = ?
		WHERE id IN (?, ?)
	`, now, fromID, toID); err != nil {
		return fmt.Errorf("bump connection counts: %w", err)
	}
	return nil
}

// OutgoingTargets returns the items this item connects to, oldest link first.
func (db *DB) OutgoingTargets(itemID int64) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+prefixedItemColumns("i")+` FROM connections c
		JOIN items i ON i.id = c.to_item
		WHERE c.from_item = ? ORDER BY c.id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("outgoing targets: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// IncomingSources returns the items that connect to this item, oldest link first.
func (db *DB) IncomingSources(itemID int64) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+prefixedItemColumns("i")+` FROM connections c
		JOIN items i ON i.id = c.from_item
		WHERE c.to_item = ? ORDER BY c.id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("incoming sources: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// AddTag attaches a tag to an item. Adding an existing tag is a no-op.
func (db *DB) AddTag(itemID int64, tag string) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, itemID, tag)
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

// TagsForItem returns the item's tags in insertion order.
func (db *DB) TagsForItem(itemID int64) ([]string, error) {
	rows, err := db.Query(`SELECT tag FROM item_tags WHERE item_id = ? ORDER BY rowid`, itemID)
	if err != nil {
		return nil, fmt.Errorf("tags for item: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ItemIDsWithAnyTag returns IDs of items carrying at least one of the tags.
func (db *DB) ItemIDsWithAnyTag(tags []string) ([]int64, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	ph := ""
	args := make([]any, len(tags))
	for i, t := range tags {
		if i > 0 {
			ph += ","
		}
		ph += "?"
		args[i] = t
	}

	rows, err := db.Query(fmt.Sprintf(`
		SELECT DISTINCT item_id FROM item_tags WHERE tag IN (%s) ORDER BY item_id
	`, ph), args...)
	if err != nil {
		return nil, fmt.Errorf("items with any tag: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListItemsByStatus returns all items with the given status, oldest first.
func (db *DB) ListItemsByStatus(status string) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+` FROM items WHERE status = ? ORDER BY created_at, id
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list items by status: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountInboxOlderThan returns how many inbox items were created at or
// before the cutoff.
func (db *DB) CountInboxOlderThan(cutoff int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM items WHERE status = 'inbox' AND created_at <= ?
	`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stale inbox: %w", err)
	}
	return count, nil
}

// ListCreatedSince returns non-dismissed items created at or after the
// cutoff, oldest first.
func (db *DB) ListCreatedSince(cutoff int64) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+` FROM items
		WHERE created_at >= ? AND status != 'dismissed'
		ORDER BY created_at, id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list created since: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ListResurfaceEligible returns active, unpaused items with at least one
// annotation or connection: the spaced-resurfacing queue.
func (db *DB) ListResurfaceEligible() ([]Item, error) {
	rows, err := db.Query(`
		SELECT ` + itemColumns + ` FROM items
		WHERE status = 'active' AND resurface_paused = 0
		AND (annotation_count > 0 OR connection_count > 0)
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list resurface eligible: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountResurfacePaused returns how many otherwise-eligible active items
// have resurfacing paused.
func (db *DB) CountResurfacePaused() (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM items
		WHERE status = 'active' AND resurface_paused = 1
		AND (annotation_count > 0 OR connection_count > 0)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count resurface paused: %w", err)
	}
	return count, nil
}

// UpdateResurfacing persists the item's resurfacing fields. Field-level
// write: nothing else on the row is touched.
func (db *DB) UpdateResurfacing(item *Item) error {
	_, err := db.Exec(`
		UPDATE items SET resurface_count = ?, resurface_interval_days = ?,
			last_engaged_at = ?, last_resurfaced_at = ?
		WHERE id = ?
	`, item.ResurfaceCount, item.ResurfaceIntervalDays,
		item.LastEngagedAt, item.LastResurfacedAt, item.ID)
	if err != nil {
		return fmt.Errorf("update resurfacing: %w", err)
	}
	return nil
}

// SetResurfacePaused sets the per-item resurfacing pause override.
func (db *DB) SetResurfacePaused(id int64, paused bool) error {
	p := 0
	if paused {
		p = 1
	}
	_, err := db.Exec(`UPDATE items SET resurface_paused = ? WHERE id = ?`, p, id)
	if err != nil {
		return fmt.Errorf("set resurface paused: %w", err)
	}
	return nil
}

func prefixedItemColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.uuid, %[1]s.title, %[1]s.status,
		%[1]s.annotation_count, %[1]s.connection_count,
		%[1]s.resurface_count, %[1]s.resurface_interval_days, %[1]s.resurface_paused,
		%[1]s.last_engaged_at, %[1]s.last_resurfaced_at, %[1]s.created_at, %[1]s.updated_at`, alias)
}

func scanItemRow(row *sql.Row) (*Item, error) {
	var it Item
	var paused int
	var engaged, resurfaced sql.NullInt64
	err := row.Scan(&it.ID, &it.UUID, &it.Title, &it.Status,
		&it.AnnotationCount, &it.ConnectionCount,
		&it.ResurfaceCount, &it.ResurfaceIntervalDays, &paused,
		&engaged, &resurfaced, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.ResurfacePaused = paused != 0
	if engaged.Valid {
		it.LastEngagedAt = &engaged.Int64
	}
	if resurfaced.Valid {
		it.LastResurfacedAt = &resurfaced.Int64
	}
	return &it, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var it Item
		var paused int
		var engaged, resurfaced sql.NullInt64
		if err := rows.Scan(&it.ID, &it.UUID, &it.Title, &it.Status,
			&it.AnnotationCount, &it.ConnectionCount,
			&it.ResurfaceCount, &it.ResurfaceIntervalDays, &paused,
			&engaged, &resurfaced, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.ResurfacePaused = paused != 0
		if engaged.Valid {
			it.LastEngagedAt = &engaged.Int64
		}
		if resurfaced.Valid {
			it.LastResurfacedAt = &resurfaced.Int64
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

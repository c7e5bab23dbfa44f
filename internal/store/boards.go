package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NudgesDisabled is the nudge_frequency_hours sentinel that turns off
// nudges for items exclusively belonging to a board.
const NudgesDisabled = -1

// Board groups items. Its nudge frequency controls whether member items
// may produce nudges.
type Board struct {
	ID                  int64
	UUID                string
	Title               string
	NudgeFrequencyHours int
	CreatedAt           int64
}

// NudgesEnabled reports whether the board allows nudges for its items.
func (b *Board) NudgesEnabled() bool {
	return b.NudgeFrequencyHours != NudgesDisabled
}

// CreateBoard inserts a new board with the default nudge frequency.
func (db *DB) CreateBoard(title string) (*Board, error) {
	now := time.Now().UnixMilli()
	id := uuid.New().String()

	result, err := db.Exec(`
		INSERT INTO boards (uuid, title, created_at) VALUES (?, ?, ?)
	`, id, title, now)
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}

	rowID, _ := result.LastInsertId()
	return &Board{
		ID:                  rowID,
		UUID:                id,
		Title:               title,
		NudgeFrequencyHours: 24,
		CreatedAt:           now,
	}, nil
}

// GetBoardByUUID returns a board by its public UUID, or nil if not found.
func (db *DB) GetBoardByUUID(id string) (*Board, error) {
	var b Board
	err := db.QueryRow(`
		SELECT id, uuid, title, nudge_frequency_hours, created_at
		FROM boards WHERE uuid = ?
	`, id).Scan(&b.ID, &b.UUID, &b.Title, &b.NudgeFrequencyHours, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return &b, nil
}

// ListBoards returns all boards in creation order.
func (db *DB) ListBoards() ([]Board, error) {
	rows, err := db.Query(`
		SELECT id, uuid, title, nudge_frequency_hours, created_at
		FROM boards ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()
	return scanBoards(rows)
}

// SetNudgeFrequency updates a board's nudge frequency. Pass NudgesDisabled
// to mute nudges for items exclusively on this board.
func (db *DB) SetNudgeFrequency(boardID int64, hours int) error {
	_, err := db.Exec(`UPDATE boards SET nudge_frequency_hours = ? WHERE id = ?`, hours, boardID)
	if err != nil {
		return fmt.Errorf("set nudge frequency: %w", err)
	}
	return nil
}

// AddItemToBoard puts an item on a board. Re-adding is a no-op.
func (db *DB) AddItemToBoard(boardID, itemID int64) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO board_items (board_id, item_id) VALUES (?, ?)
	`, boardID, itemID)
	if err != nil {
		return fmt.Errorf("add item to board: %w", err)
	}
	return nil
}

// BoardsForItem returns the boards an item belongs to, in creation order.
func (db *DB) BoardsForItem(itemID int64) ([]Board, error) {
	rows, err := db.Query(`
		SELECT b.id, b.uuid, b.title, b.nudge_frequency_hours, b.created_at
		FROM board_items bi
		JOIN boards b ON b.id = bi.board_id
		WHERE bi.item_id = ?
		ORDER BY b.created_at, b.id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("boards for item: %w", err)
	}
	defer rows.Close()
	return scanBoards(rows)
}

// ItemsForBoard returns the member items of a board, oldest first.
func (db *DB) ItemsForBoard(boardID int64) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+prefixedItemColumns("i")+` FROM board_items bi
		JOIN items i ON i.id = bi.item_id
		WHERE bi.board_id = ?
		ORDER BY i.created_at, i.id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("items for board: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanBoards(rows *sql.Rows) ([]Board, error) {
	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.UUID, &b.Title, &b.NudgeFrequencyHours, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

package store

import (
	"testing"
)

func TestCreateBoard(t *testing.T) {
	db := testDB(t)

	board, err := db.CreateBoard("Distributed Systems")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if board.UUID == "" {
		t.Error("expected a UUID")
	}
	if !board.NudgesEnabled() {
		t.Error("new board should have nudges enabled")
	}

	if err := db.SetNudgeFrequency(board.ID, NudgesDisabled); err != nil {
		t.Fatalf("SetNudgeFrequency: %v", err)
	}
	found, _ := db.GetBoardByUUID(board.UUID)
	if found.NudgesEnabled() {
		t.Error("board with -1 frequency should be muted")
	}
}

func TestBoardMembership(t *testing.T) {
	db := testDB(t)

	board, _ := db.CreateBoard("Reading")
	item, _ := db.CreateItem("SICP")

	if err := db.AddItemToBoard(board.ID, item.ID); err != nil {
		t.Fatalf("AddItemToBoard: %v", err)
	}
	// Re-adding is a no-op, not an error.
	if err := db.AddItemToBoard(board.ID, item.ID); err != nil {
		t.Fatalf("AddItemToBoard again: %v", err)
	}

	boards, err := db.BoardsForItem(item.ID)
	if err != nil {
		t.Fatalf("BoardsForItem: %v", err)
	}
	if len(boards) != 1 || boards[0].Title != "Reading" {
		t.Errorf("boards = %v, want [Reading]", boards)
	}

	items, err := db.ItemsForBoard(board.ID)
	if err != nil {
		t.Fatalf("ItemsForBoard: %v", err)
	}
	if len(items) != 1 || items[0].Title != "SICP" {
		t.Errorf("items = %v, want [SICP]", items)
	}
}

func TestListBoardsStableOrder(t *testing.T) {
	db := testDB(t)

	db.CreateBoard("first")
	db.CreateBoard("second")
	db.CreateBoard("third")

	boards, err := db.ListBoards()
	if err != nil {
		t.Fatalf("ListBoards: %v", err)
	}
	if len(boards) != 3 {
		t.Fatalf("len = %d, want 3", len(boards))
	}
	for i, want := range []string{"first", "second", "third"} {
		if boards[i].Title != want {
			t.Errorf("boards[%d] = %q, want %q", i, boards[i].Title, want)
		}
	}
}

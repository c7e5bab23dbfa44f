package store

import (
	"testing"
)

func TestCourseLectures(t *testing.T) {
	db := testDB(t)

	course, err := db.CreateCourse("Databases 101")
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	l1, _ := db.CreateItem("Lecture 1: Storage")
	l2, _ := db.CreateItem("Lecture 2: Indexes")

	pos, err := db.AddLecture(course.ID, l1.ID)
	if err != nil {
		t.Fatalf("AddLecture: %v", err)
	}
	if pos != 1 {
		t.Errorf("position = %d, want 1", pos)
	}
	pos, _ = db.AddLecture(course.ID, l2.ID)
	if pos != 2 {
		t.Errorf("position = %d, want 2", pos)
	}

	total, _ := db.CountLectures(course.ID)
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	lec, item, err := db.NextLecture(course.ID)
	if err != nil {
		t.Fatalf("NextLecture: %v", err)
	}
	if lec == nil || lec.Position != 1 || item.Title != "Lecture 1: Storage" {
		t.Errorf("next = %v/%v, want lecture 1", lec, item)
	}

	if err := db.CompleteLecture(course.ID, l1.ID); err != nil {
		t.Fatalf("CompleteLecture: %v", err)
	}
	lec, item, _ = db.NextLecture(course.ID)
	if lec == nil || lec.Position != 2 || item.Title != "Lecture 2: Indexes" {
		t.Errorf("next = %v/%v, want lecture 2", lec, item)
	}

	db.CompleteLecture(course.ID, l2.ID)
	lec, _, _ = db.NextLecture(course.ID)
	if lec != nil {
		t.Errorf("next = %v, want nil for finished course", lec)
	}

	// Completing twice is an error.
	if err := db.CompleteLecture(course.ID, l2.ID); err == nil {
		t.Error("expected error completing an already-completed lecture")
	}
}

func TestLectureItemIDs(t *testing.T) {
	db := testDB(t)

	course, _ := db.CreateCourse("Compilers")
	a, _ := db.CreateItem("Lexing")
	b, _ := db.CreateItem("Parsing")
	db.AddLecture(course.ID, a.ID)
	db.AddLecture(course.ID, b.ID)

	ids, err := db.LectureItemIDs(course.ID)
	if err != nil {
		t.Fatalf("LectureItemIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Errorf("ids = %v, want [%d %d]", ids, a.ID, b.ID)
	}
}

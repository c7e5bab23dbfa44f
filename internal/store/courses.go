package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Course is an ordered sequence of lecture items.
type Course struct {
	ID        int64
	UUID      string
	Title     string
	CreatedAt int64
}

// Lecture is one entry in a course's ordered sequence.
type Lecture struct {
	CourseID    int64
	ItemID      int64
	Position    int
	CompletedAt *int64
}

// CreateCourse inserts a new course.
func (db *DB) CreateCourse(title string) (*Course, error) {
	now := time.Now().UnixMilli()
	id := uuid.New().String()

	result, err := db.Exec(`
		INSERT INTO courses (uuid, title, created_at) VALUES (?, ?, ?)
	`, id, title, now)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	rowID, _ := result.LastInsertId()
	return &Course{ID: rowID, UUID: id, Title: title, CreatedAt: now}, nil
}

// GetCourseByUUID returns a course by its public UUID, or nil if not found.
func (db *DB) GetCourseByUUID(id string) (*Course, error) {
	var c Course
	err := db.QueryRow(`
		SELECT id, uuid, title, created_at FROM courses WHERE uuid = ?
	`, id).Scan(&c.ID, &c.UUID, &c.Title, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

// ListCourses returns all courses in creation order.
func (db *DB) ListCourses() ([]Course, error) {
	rows, err := db.Query(`SELECT id, uuid, title, created_at FROM courses ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.UUID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// AddLecture appends an item to the end of a course's sequence.
func (db *DB) AddLecture(courseID, itemID int64) (int, error) {
	var next int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(position), 0) + 1 FROM course_lectures WHERE course_id = ?
	`, courseID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next lecture position: %w", err)
	}

	if _, err := db.Exec(`
		INSERT INTO course_lectures (course_id, item_id, position) VALUES (?, ?, ?)
	`, courseID, itemID, next); err != nil {
		return 0, fmt.Errorf("add lecture: %w", err)
	}
	return next, nil
}

// CountLectures returns the number of lectures in a course.
func (db *DB) CountLectures(courseID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM course_lectures WHERE course_id = ?`, courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count lectures: %w", err)
	}
	return count, nil
}

// LectureItemIDs returns the item IDs of all lectures in a course, in order.
func (db *DB) LectureItemIDs(courseID int64) ([]int64, error) {
	rows, err := db.Query(`
		SELECT item_id FROM course_lectures WHERE course_id = ? ORDER BY position
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("lecture item ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lecture item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NextLecture returns the first uncompleted lecture of a course together
// with its item, or nil if every lecture is completed (or there are none).
func (db *DB) NextLecture(courseID int64) (*Lecture, *Item, error) {
	var lec Lecture
	err := db.QueryRow(`
		SELECT course_id, item_id, position FROM course_lectures
		WHERE course_id = ? AND completed_at IS NULL
		ORDER BY position LIMIT 1
	`, courseID).Scan(&lec.CourseID, &lec.ItemID, &lec.Position)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("next lecture: %w", err)
	}

	item, err := db.GetItemByID(lec.ItemID)
	if err != nil {
		return nil, nil, err
	}
	return &lec, item, nil
}

// CompleteLecture marks a course lecture as completed.
func (db *DB) CompleteLecture(courseID, itemID int64) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE course_lectures SET completed_at = ?
		WHERE course_id = ? AND item_id = ? AND completed_at IS NULL
	`, now, courseID, itemID)
	if err != nil {
		return fmt.Errorf("complete lecture: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no uncompleted lecture for item %d in course %d", itemID, courseID)
	}
	return nil
}

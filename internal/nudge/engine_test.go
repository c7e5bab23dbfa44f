package nudge

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/realtobyfu/grove-sub000/internal/config"
	"github.com/realtobyfu/grove-sub000/internal/store"
)

func testEngine(t *testing.T, db *store.DB, cfg config.NudgeConfig, now time.Time) *Engine {
	t.Helper()
	e := NewEngine(db, cfg)
	e.now = func() time.Time { return now }
	e.resurfacer.now = e.now
	e.rng = rand.New(rand.NewSource(1))
	return e
}

func nudgesOfType(t *testing.T, db *store.DB, typ string) []store.Nudge {
	t.Helper()
	all, err := db.ListRecentNudges(100)
	if err != nil {
		t.Fatalf("ListRecentNudges: %v", err)
	}
	var out []store.Nudge
	for _, n := range all {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestStaleInboxScenario(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	for i := 0; i < 6; i++ {
		item, _ := db.CreateItem("inbox capture")
		backdateCreated(t, db, item.ID, 20, now)
	}

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeStaleInbox)
	if len(nudges) != 1 {
		t.Fatalf("stale inbox nudges = %d, want 1", len(nudges))
	}
	if !strings.Contains(nudges[0].Message, "6") {
		t.Errorf("message = %q, want the count 6", nudges[0].Message)
	}

	// A second tick while the nudge is still open produces nothing new.
	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStaleInbox); len(got) != 1 {
		t.Errorf("stale inbox nudges after second tick = %d, want 1", len(got))
	}
}

func TestStaleInboxBelowThreshold(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	for i := 0; i < 4; i++ {
		item, _ := db.CreateItem("inbox capture")
		backdateCreated(t, db, item.ID, 20, now)
	}

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStaleInbox); len(got) != 0 {
		t.Errorf("stale inbox nudges = %d, want 0 below threshold", len(got))
	}
}

func TestDailyBudgetAndOverride(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	cfg := config.Default().Nudges
	cfg.MaxPerDay = 2
	e := testEngine(t, db, cfg, now)

	for i := 0; i < 6; i++ {
		item, _ := db.CreateItem("inbox capture")
		backdateCreated(t, db, item.ID, 20, now)
	}

	// Two nudges already created today, only one acted on this week:
	// the budget is exhausted and the override is out of reach.
	first := &store.Nudge{Type: store.NudgeResurface, Message: "one"}
	db.InsertNudge(first)
	db.MarkNudgeActedOn(first.UUID)
	second := &store.Nudge{Type: store.NudgeResurface, Message: "two"}
	db.InsertNudge(second)
	db.MarkNudgeDismissed(second.UUID)

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStaleInbox); len(got) != 0 {
		t.Fatalf("stale inbox nudges = %d, want 0 with budget exhausted", len(got))
	}

	// Three acted-on nudges this week lift the cap.
	for _, msg := range []string{"three", "four"} {
		n := &store.Nudge{Type: store.NudgeResurface, Message: msg}
		db.InsertNudge(n)
		db.MarkNudgeActedOn(n.UUID)
	}

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStaleInbox); len(got) != 1 {
		t.Errorf("stale inbox nudges = %d, want 1 with high engagement", len(got))
	}
}

func TestResurfaceTick(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	item := eligibleItem(t, db, "Raft consensus")
	backdateCreated(t, db, item.ID, 60, now)
	ts := daysAgo(now, 10)
	item.LastResurfacedAt = &ts
	db.UpdateResurfacing(item)

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeResurface)
	if len(nudges) != 1 {
		t.Fatalf("resurface nudges = %d, want 1", len(nudges))
	}
	if !strings.Contains(nudges[0].Message, "Raft consensus") {
		t.Errorf("message = %q, want the item title", nudges[0].Message)
	}
	if !strings.Contains(nudges[0].Message, "you noted") {
		t.Errorf("message = %q, want the annotation hint", nudges[0].Message)
	}
	if nudges[0].TargetItem != item.UUID {
		t.Errorf("target = %q, want %q", nudges[0].TargetItem, item.UUID)
	}

	// The nudge creation stamped last_resurfaced_at, starting the next countdown.
	found, _ := db.GetItemByID(item.ID)
	if found.LastResurfacedAt == nil || *found.LastResurfacedAt != now.UnixMilli() {
		t.Errorf("last_resurfaced_at = %v, want the tick time", found.LastResurfacedAt)
	}

	// Still open: no duplicate on the next tick.
	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 1 {
		t.Errorf("resurface nudges after second tick = %d, want 1", len(got))
	}
}

func TestResurfaceDismissalSuppression(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	item := eligibleItem(t, db, "suppressed item")
	backdateCreated(t, db, item.ID, 60, now)
	ts := daysAgo(now, 10)
	item.LastResurfacedAt = &ts
	db.UpdateResurfacing(item)

	// A resurface nudge for this item was dismissed just now.
	dismissed := &store.Nudge{Type: store.NudgeResurface, Message: "old", TargetItem: item.UUID}
	db.InsertNudge(dismissed)
	db.MarkNudgeDismissed(dismissed.UUID)

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 1 {
		t.Fatalf("resurface nudges = %d, want only the dismissed one", len(got))
	}

	// Eight days after dismissal the suppression has lapsed.
	if _, err := db.Exec("UPDATE nudges SET resolved_at = ? WHERE uuid = ?", daysAgo(now, 8), dismissed.UUID); err != nil {
		t.Fatalf("backdate dismissal: %v", err)
	}
	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 2 {
		t.Errorf("resurface nudges = %d, want a new one after the window", len(got))
	}
}

func TestLegacyResurfaceFallback(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	// Active, no annotations or connections, untouched for 20 days.
	item, _ := db.CreateItem("forgotten note")
	db.SetItemStatus(item.ID, store.StatusActive)
	backdateCreated(t, db, item.ID, 20, now)

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeResurface)
	if len(nudges) != 1 {
		t.Fatalf("resurface nudges = %d, want 1 from the fallback", len(nudges))
	}
	if !strings.Contains(nudges[0].Message, "quiet for a while") {
		t.Errorf("message = %q, want the legacy phrasing", nudges[0].Message)
	}
	if nudges[0].TargetItem != item.UUID {
		t.Errorf("target = %q, want %q", nudges[0].TargetItem, item.UUID)
	}
}

func TestLegacyFallbackHonorsDismissalWindow(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	item, _ := db.CreateItem("forgotten note")
	db.SetItemStatus(item.ID, store.StatusActive)
	backdateCreated(t, db, item.ID, 20, now)

	// Dismissed 20 days ago: inside the fallback's 30-day window.
	dismissed := &store.Nudge{Type: store.NudgeResurface, Message: "old", TargetItem: item.UUID}
	db.InsertNudge(dismissed)
	db.MarkNudgeDismissed(dismissed.UUID)
	if _, err := db.Exec("UPDATE nudges SET resolved_at = ? WHERE uuid = ?", daysAgo(now, 20), dismissed.UUID); err != nil {
		t.Fatalf("backdate dismissal: %v", err)
	}

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 1 {
		t.Errorf("resurface nudges = %d, want no new fallback nudge", len(got))
	}
}

func TestBoardMute(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	board, _ := db.CreateBoard("muted board")
	db.SetNudgeFrequency(board.ID, store.NudgesDisabled)

	item := eligibleItem(t, db, "muted item")
	backdateCreated(t, db, item.ID, 60, now)
	ts := daysAgo(now, 10)
	item.LastResurfacedAt = &ts
	db.UpdateResurfacing(item)
	db.AddItemToBoard(board.ID, item.ID)

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 0 {
		t.Errorf("resurface nudges = %d, want 0 for a board-muted item", len(got))
	}

	// Membership on one nudging board un-mutes the item.
	open, _ := db.CreateBoard("open board")
	db.AddItemToBoard(open.ID, item.ID)

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 1 {
		t.Errorf("resurface nudges = %d, want 1 once any board allows nudges", len(got))
	}
}

func TestConnectionPromptScenario(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	for _, title := range []string{"tokio", "serde", "axum"} {
		item, _ := db.CreateItem(title)
		db.AddTag(item.ID, "rust")
	}

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeConnectionPrompt)
	if len(nudges) != 1 {
		t.Fatalf("connection prompt nudges = %d, want 1", len(nudges))
	}
	if !strings.Contains(nudges[0].Message, `"rust"`) || !strings.Contains(nudges[0].Message, "3") {
		t.Errorf("message = %q, want the tag and count", nudges[0].Message)
	}
	if len(nudges[0].RelatedItemIDs) != 3 {
		t.Errorf("related = %v, want the 3 cluster members", nudges[0].RelatedItemIDs)
	}

	// Dismissal suppresses any later cluster overlapping by 2+ items,
	// even after a new member joins.
	db.MarkNudgeDismissed(nudges[0].UUID)
	fourth, _ := db.CreateItem("rayon")
	db.AddTag(fourth.ID, "rust")

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeConnectionPrompt); len(got) != 1 {
		t.Errorf("connection prompt nudges = %d, want no new one inside the cooldown", len(got))
	}
}

func TestConnectionPromptLargestCluster(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	for i := 0; i < 3; i++ {
		item, _ := db.CreateItem("go note")
		db.AddTag(item.ID, "go")
	}
	for i := 0; i < 4; i++ {
		item, _ := db.CreateItem("zig note")
		db.AddTag(item.ID, "zig")
	}

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeConnectionPrompt)
	if len(nudges) != 1 {
		t.Fatalf("connection prompt nudges = %d, want 1", len(nudges))
	}
	if !strings.Contains(nudges[0].Message, `"zig"`) {
		t.Errorf("message = %q, want the largest cluster's tag", nudges[0].Message)
	}
}

func TestStreakScenario(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	board, _ := db.CreateBoard("Daily Writing")
	for d := 0; d < 3; d++ {
		item, _ := db.CreateItem("entry")
		db.AddItemToBoard(board.ID, item.ID)
		ts := daysAgo(now, d)
		if _, err := db.Exec("UPDATE items SET updated_at = ? WHERE id = ?", ts, item.ID); err != nil {
			t.Fatalf("set updated_at: %v", err)
		}
	}

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeStreak)
	if len(nudges) != 1 {
		t.Fatalf("streak nudges = %d, want 1", len(nudges))
	}
	if !strings.Contains(nudges[0].Message, "Daily Writing") || !strings.Contains(nudges[0].Message, "3") {
		t.Errorf("message = %q, want the board title and day count", nudges[0].Message)
	}

	// Dismissal cools down any board overlapping the related items.
	db.MarkNudgeDismissed(nudges[0].UUID)
	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStreak); len(got) != 1 {
		t.Errorf("streak nudges = %d, want no new one inside the cooldown", len(got))
	}
}

func TestStreakBrokenByGap(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	board, _ := db.CreateBoard("Sporadic")
	// Today and two days ago, but nothing yesterday: streak of 1.
	for _, d := range []int{0, 2} {
		item, _ := db.CreateItem("entry")
		db.AddItemToBoard(board.ID, item.ID)
		if _, err := db.Exec("UPDATE items SET updated_at = ? WHERE id = ?", daysAgo(now, d), item.ID); err != nil {
			t.Fatalf("set updated_at: %v", err)
		}
	}

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStreak); len(got) != 0 {
		t.Errorf("streak nudges = %d, want 0 for a broken streak", len(got))
	}
}

func TestStreakSkipsMutedBoard(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	board, _ := db.CreateBoard("Muted Habit")
	db.SetNudgeFrequency(board.ID, store.NudgesDisabled)
	for d := 0; d < 5; d++ {
		item, _ := db.CreateItem("entry")
		db.AddItemToBoard(board.ID, item.ID)
		if _, err := db.Exec("UPDATE items SET updated_at = ? WHERE id = ?", daysAgo(now, d), item.ID); err != nil {
			t.Fatalf("set updated_at: %v", err)
		}
	}

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStreak); len(got) != 0 {
		t.Errorf("streak nudges = %d, want 0 for a muted board", len(got))
	}
}

func TestContinueCourseScenario(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	course, _ := db.CreateCourse("Databases 101")
	lec1, _ := db.CreateItem("Lecture 1: Storage")
	db.AddTag(lec1.ID, "databases")
	lec2, _ := db.CreateItem("Lecture 2: Indexes")
	db.AddLecture(course.ID, lec1.ID)
	db.AddLecture(course.ID, lec2.ID)

	// Two non-lecture notes share the lecture's tag.
	for i := 0; i < 2; i++ {
		note, _ := db.CreateItem("db note")
		db.AddTag(note.ID, "databases")
	}

	e.GenerateNudges()

	nudges := nudgesOfType(t, db, store.NudgeContinueCourse)
	if len(nudges) != 1 {
		t.Fatalf("course nudges = %d, want 1", len(nudges))
	}
	msg := nudges[0].Message
	if !strings.Contains(msg, "Databases 101") || !strings.Contains(msg, "lecture 1 of 2") {
		t.Errorf("message = %q, want course title and lecture position", msg)
	}
	if !strings.Contains(msg, "2 of your notes") {
		t.Errorf("message = %q, want the related note count", msg)
	}
	if nudges[0].TargetItem != lec1.UUID {
		t.Errorf("target = %q, want the next lecture", nudges[0].TargetItem)
	}

	// Dismissing the nudge for this lecture suppresses it, but completing
	// the lecture moves the course on to a fresh target.
	db.MarkNudgeDismissed(nudges[0].UUID)
	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeContinueCourse); len(got) != 1 {
		t.Fatalf("course nudges = %d, want no new one for the dismissed lecture", len(got))
	}

	db.CompleteLecture(course.ID, lec1.ID)
	e.GenerateNudges()
	nudges = nudgesOfType(t, db, store.NudgeContinueCourse)
	if len(nudges) != 2 {
		t.Fatalf("course nudges = %d, want a new one for lecture 2", len(nudges))
	}
	if nudges[0].TargetItem != lec2.UUID {
		t.Errorf("target = %q, want lecture 2", nudges[0].TargetItem)
	}
}

func TestMultipleGeneratorsOneTick(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	// Stale inbox.
	for i := 0; i < 6; i++ {
		item, _ := db.CreateItem("inbox capture")
		backdateCreated(t, db, item.ID, 20, now)
	}
	// Streak board.
	board, _ := db.CreateBoard("Habit")
	for d := 0; d < 3; d++ {
		item, _ := db.CreateItem("entry")
		db.AddItemToBoard(board.ID, item.ID)
		if _, err := db.Exec("UPDATE items SET updated_at = ? WHERE id = ?", daysAgo(now, d), item.ID); err != nil {
			t.Fatalf("set updated_at: %v", err)
		}
	}
	// Course with an uncompleted lecture.
	course, _ := db.CreateCourse("Compilers")
	lec, _ := db.CreateItem("Lexing")
	db.AddLecture(course.ID, lec.ID)

	e.GenerateNudges()

	all, _ := db.ListRecentNudges(10)
	if len(all) != 3 {
		t.Fatalf("nudges = %d, want one each from stale inbox, streak, course", len(all))
	}
	types := map[string]bool{}
	for _, n := range all {
		types[n.Type] = true
	}
	for _, want := range []string{store.NudgeStaleInbox, store.NudgeStreak, store.NudgeContinueCourse} {
		if !types[want] {
			t.Errorf("missing %s nudge in %v", want, all)
		}
	}
}

func TestDisabledCategories(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	cfg := config.Default().Nudges
	cfg.StaleInbox = false
	e := testEngine(t, db, cfg, now)

	for i := 0; i < 6; i++ {
		item, _ := db.CreateItem("inbox capture")
		backdateCreated(t, db, item.ID, 20, now)
	}

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeStaleInbox); len(got) != 0 {
		t.Errorf("stale inbox nudges = %d, want 0 when disabled", len(got))
	}
}

func TestResurfacingPausedGlobally(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	cfg := config.Default().Nudges
	cfg.ResurfacingPaused = true
	e := testEngine(t, db, cfg, now)

	item := eligibleItem(t, db, "paused globally")
	backdateCreated(t, db, item.ID, 60, now)
	ts := daysAgo(now, 10)
	item.LastResurfacedAt = &ts
	db.UpdateResurfacing(item)

	e.GenerateNudges()
	if got := nudgesOfType(t, db, store.NudgeResurface); len(got) != 0 {
		t.Errorf("resurface nudges = %d, want 0 with resurfacing paused", len(got))
	}
}

func TestTickResetsStaleIntervals(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	item := eligibleItem(t, db, "long idle")
	engaged := daysAgo(now, 70)
	item.LastEngagedAt = &engaged
	item.ResurfaceIntervalDays = 56
	db.UpdateResurfacing(item)

	e.GenerateNudges()

	found, _ := db.GetItemByID(item.ID)
	if found.ResurfaceIntervalDays != DefaultIntervalDays {
		t.Errorf("interval = %d, want reset to %d on tick", found.ResurfaceIntervalDays, DefaultIntervalDays)
	}
}

func TestGenerateNudgesNonReentrant(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	e := testEngine(t, db, config.Default().Nudges, now)

	for i := 0; i < 6; i++ {
		item, _ := db.CreateItem("inbox capture")
		backdateCreated(t, db, item.ID, 20, now)
	}

	// Simulate a tick already in flight: the overlapping call must no-op.
	e.running.Store(true)
	e.GenerateNudges()
	if got, _ := db.ListRecentNudges(10); len(got) != 0 {
		t.Errorf("nudges = %d, want 0 while another tick is in flight", len(got))
	}

	e.running.Store(false)
	e.GenerateNudges()
	if got, _ := db.ListRecentNudges(10); len(got) != 1 {
		t.Errorf("nudges = %d, want 1 after the guard clears", len(got))
	}
}

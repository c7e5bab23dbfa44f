package nudge

import (
	"time"

	"github.com/realtobyfu/grove-sub000/internal/store"
)

// generateResurface asks the resurfacing service for the most overdue
// eligible item. When the spaced queue yields nothing it falls back to the
// legacy heuristic over plain stale items.
func (e *Engine) generateResurface() (bool, error) {
	open, err := e.db.HasOpenNudge(store.NudgeResurface)
	if err != nil || open {
		return false, err
	}
	if e.cfg.ResurfacingPaused {
		return false, nil
	}

	excluded, err := e.dismissedTargets(store.NudgeResurface, resurfaceDismissWindow)
	if err != nil {
		return false, err
	}

	cand, err := e.resurfacer.NextCandidate(excluded)
	if err != nil {
		return false, err
	}
	if cand != nil {
		muted, err := e.boardMuted(cand.ID)
		if err != nil {
			return false, err
		}
		if muted {
			return false, nil
		}

		msg := resurfaceMessage(cand.Title, e.resurfacer.Context(cand))
		// Stamp last_resurfaced_at first: the countdown to the next due
		// date starts when the nudge is created, acted on or not.
		if err := e.resurfacer.MarkResurfaced(cand); err != nil {
			return false, err
		}
		n := &store.Nudge{
			Type:           store.NudgeResurface,
			Message:        msg,
			TargetItem:     cand.UUID,
			RelatedItemIDs: []string{cand.UUID},
		}
		if err := e.db.InsertNudge(n); err != nil {
			return false, err
		}
		return true, nil
	}

	return e.generateLegacyResurface()
}

// generateLegacyResurface picks uniformly at random among active,
// non-eligible items untouched for two weeks. Random rather than oldest-
// first, so the same item does not become a deterministic nag.
func (e *Engine) generateLegacyResurface() (bool, error) {
	items, err := e.db.ListItemsByStatus(store.StatusActive)
	if err != nil {
		return false, err
	}

	excluded, err := e.dismissedTargets(store.NudgeResurface, legacyDismissWindow)
	if err != nil {
		return false, err
	}

	cutoff := e.now().Add(-legacyStaleAfter).UnixMilli()
	var candidates []store.Item
	for _, it := range items {
		if it.ResurfacingEligible() {
			continue
		}
		if it.UpdatedAt > cutoff {
			continue
		}
		if excluded[it.UUID] {
			continue
		}
		muted, err := e.boardMuted(it.ID)
		if err != nil {
			return false, err
		}
		if muted {
			continue
		}
		candidates = append(candidates, it)
	}
	if len(candidates) == 0 {
		return false, nil
	}

	pick := candidates[e.rng.Intn(len(candidates))]
	n := &store.Nudge{
		Type:           store.NudgeResurface,
		Message:        legacyResurfaceMessage(pick.Title),
		TargetItem:     pick.UUID,
		RelatedItemIDs: []string{pick.UUID},
	}
	if err := e.db.InsertNudge(n); err != nil {
		return false, err
	}
	return true, nil
}

// generateStaleInbox fires when enough inbox items have sat untriaged for
// two weeks.
func (e *Engine) generateStaleInbox() (bool, error) {
	open, err := e.db.HasOpenNudge(store.NudgeStaleInbox)
	if err != nil || open {
		return false, err
	}

	cooled, err := e.dismissedWithin(store.NudgeStaleInbox, typeCooldownWindow, nil)
	if err != nil || cooled {
		return false, err
	}

	count, err := e.db.CountInboxOlderThan(e.now().Add(-staleInboxAge).UnixMilli())
	if err != nil {
		return false, err
	}
	if count < staleInboxThreshold {
		return false, nil
	}

	n := &store.Nudge{
		Type:    store.NudgeStaleInbox,
		Message: staleInboxMessage(count),
	}
	if err := e.db.InsertNudge(n); err != nil {
		return false, err
	}
	return true, nil
}

// generateConnectionPrompt looks for the largest tag cluster among items
// captured this week and suggests connecting them. The cooldown is
// cluster-level: a dismissal suppresses any later cluster sharing two or
// more of its items, not just the same tag.
func (e *Engine) generateConnectionPrompt() (bool, error) {
	open, err := e.db.HasOpenNudge(store.NudgeConnectionPrompt)
	if err != nil || open {
		return false, err
	}

	items, err := e.db.ListCreatedSince(e.now().Add(-clusterWindow).UnixMilli())
	if err != nil {
		return false, err
	}

	// Tag -> member items, tags kept in first-encounter order so ties
	// break deterministically.
	var order []string
	members := make(map[string][]store.Item)
	for _, it := range items {
		tags, err := e.db.TagsForItem(it.ID)
		if err != nil {
			return false, err
		}
		for _, t := range tags {
			if _, seen := members[t]; !seen {
				order = append(order, t)
			}
			members[t] = append(members[t], it)
		}
	}

	best := ""
	for _, t := range order {
		if len(members[t]) < clusterMinSize {
			continue
		}
		if best == "" || len(members[t]) > len(members[best]) {
			best = t
		}
	}
	if best == "" {
		return false, nil
	}

	cluster := members[best]
	clusterIDs := make(map[string]bool, len(cluster))
	related := make([]string, 0, len(cluster))
	for _, it := range cluster {
		clusterIDs[it.UUID] = true
		related = append(related, it.UUID)
	}

	cooled, err := e.dismissedWithin(store.NudgeConnectionPrompt, typeCooldownWindow, func(n store.Nudge) bool {
		return overlapCount(n.RelatedItemIDs, clusterIDs) >= clusterOverlap
	})
	if err != nil || cooled {
		return false, err
	}

	n := &store.Nudge{
		Type:           store.NudgeConnectionPrompt,
		Message:        connectionPromptMessage(best, len(cluster)),
		RelatedItemIDs: related,
	}
	if err := e.db.InsertNudge(n); err != nil {
		return false, err
	}
	return true, nil
}

// generateStreak scans boards in stable order and nudges on the first one
// with enough consecutive days of activity. One streak nudge per tick.
func (e *Engine) generateStreak() (bool, error) {
	open, err := e.db.HasOpenNudge(store.NudgeStreak)
	if err != nil || open {
		return false, err
	}

	boards, err := e.db.ListBoards()
	if err != nil {
		return false, err
	}

	for _, b := range boards {
		if !b.NudgesEnabled() {
			continue
		}
		items, err := e.db.ItemsForBoard(b.ID)
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			continue
		}

		days := e.streakDays(items)
		if days < streakMinDays {
			continue
		}

		memberIDs := make(map[string]bool, len(items))
		related := make([]string, 0, len(items))
		for _, it := range items {
			memberIDs[it.UUID] = true
			related = append(related, it.UUID)
		}

		cooled, err := e.dismissedWithin(store.NudgeStreak, typeCooldownWindow, func(n store.Nudge) bool {
			return overlapCount(n.RelatedItemIDs, memberIDs) >= 1
		})
		if err != nil {
			return false, err
		}
		if cooled {
			continue
		}

		n := &store.Nudge{
			Type:           store.NudgeStreak,
			Message:        streakMessage(b.Title, days),
			RelatedItemIDs: related,
		}
		if err := e.db.InsertNudge(n); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// streakDays counts consecutive days, walking backward from today, in
// which at least one member item was touched. Stops at the first gap,
// capped at 30 days.
func (e *Engine) streakDays(items []store.Item) int {
	now := e.now()
	active := make(map[string]bool, len(items))
	for _, it := range items {
		active[dayKey(time.UnixMilli(it.UpdatedAt).In(now.Location()))] = true
	}

	days := 0
	for d := 0; d < streakWalkDays; d++ {
		if !active[dayKey(now.AddDate(0, 0, -d))] {
			break
		}
		days++
	}
	return days
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// generateContinueCourse scans courses in stable order and nudges toward
// the first one with an uncompleted lecture. One course nudge per tick.
func (e *Engine) generateContinueCourse() (bool, error) {
	open, err := e.db.HasOpenNudge(store.NudgeContinueCourse)
	if err != nil || open {
		return false, err
	}

	courses, err := e.db.ListCourses()
	if err != nil {
		return false, err
	}

	for _, c := range courses {
		lec, item, err := e.db.NextLecture(c.ID)
		if err != nil {
			return false, err
		}
		if lec == nil || item == nil {
			continue
		}

		cooled, err := e.dismissedWithin(store.NudgeContinueCourse, typeCooldownWindow, func(n store.Nudge) bool {
			return n.TargetItem == item.UUID
		})
		if err != nil {
			return false, err
		}
		if cooled {
			continue
		}

		total, err := e.db.CountLectures(c.ID)
		if err != nil {
			return false, err
		}

		relatedNotes, err := e.countRelatedNotes(c.ID, item.ID)
		if err != nil {
			return false, err
		}

		n := &store.Nudge{
			Type:           store.NudgeContinueCourse,
			Message:        continueCourseMessage(c.Title, lec.Position, total, relatedNotes),
			TargetItem:     item.UUID,
			RelatedItemIDs: []string{item.UUID},
		}
		if err := e.db.InsertNudge(n); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// countRelatedNotes counts non-lecture items sharing at least one tag with
// the lecture item.
func (e *Engine) countRelatedNotes(courseID, lectureItemID int64) (int, error) {
	tags, err := e.db.TagsForItem(lectureItemID)
	if err != nil {
		return 0, err
	}
	if len(tags) == 0 {
		return 0, nil
	}

	ids, err := e.db.ItemIDsWithAnyTag(tags)
	if err != nil {
		return 0, err
	}
	lectureIDs, err := e.db.LectureItemIDs(courseID)
	if err != nil {
		return 0, err
	}

	lectures := make(map[int64]bool, len(lectureIDs))
	for _, id := range lectureIDs {
		lectures[id] = true
	}

	count := 0
	for _, id := range ids {
		if !lectures[id] {
			count++
		}
	}
	return count, nil
}

package nudge

import (
	"fmt"
	"sort"
	"time"

	"github.com/realtobyfu/grove-sub000/internal/store"
)

// Resurfacing interval bounds, in days.
const (
	DefaultIntervalDays = 7
	MaxIntervalDays     = 120

	// Items untouched this long get their interval reset back to the default.
	staleAfterDays = 60
)

// Resurfacer maintains the spaced-resurfacing queue: items with at least
// one annotation or connection, periodically due for another look. The
// review interval doubles on engagement and snaps back after long
// inactivity, so the schedule adapts to how much the user actually cares.
type Resurfacer struct {
	db  *store.DB
	now func() time.Time
}

// NewResurfacer creates a Resurfacer backed by the given store.
func NewResurfacer(db *store.DB) *Resurfacer {
	return &Resurfacer{db: db, now: time.Now}
}

// NextResurfaceAt returns when the item is next due. The anchor is the
// most recent of last_resurfaced_at, last_engaged_at and created_at, so a
// shown-but-ignored nudge and real engagement both push the due date out.
func NextResurfaceAt(item *store.Item) time.Time {
	anchor := item.CreatedAt
	if item.LastEngagedAt != nil && *item.LastEngagedAt > anchor {
		anchor = *item.LastEngagedAt
	}
	if item.LastResurfacedAt != nil && *item.LastResurfacedAt > anchor {
		anchor = *item.LastResurfacedAt
	}
	return time.UnixMilli(anchor).Add(time.Duration(item.ResurfaceIntervalDays) * 24 * time.Hour)
}

// RecordEngagement registers a meaningful interaction with an already-
// eligible item: stamps last_engaged_at, bumps the engagement count, and
// doubles the review interval up to the cap.
func (r *Resurfacer) RecordEngagement(item *store.Item) error {
	now := r.now().UnixMilli()
	item.LastEngagedAt = &now
	item.ResurfaceCount++

	interval := item.ResurfaceIntervalDays * 2
	if interval > MaxIntervalDays {
		interval = MaxIntervalDays
	}
	if interval < DefaultIntervalDays {
		interval = DefaultIntervalDays
	}
	item.ResurfaceIntervalDays = interval

	if err := r.db.UpdateResurfacing(item); err != nil {
		return fmt.Errorf("record engagement: %w", err)
	}
	return nil
}

// MarkResurfaced stamps last_resurfaced_at. Called exactly once, when a
// resurface nudge is created for the item; the countdown to the next due
// date starts here whether or not the user acts on the nudge.
func (r *Resurfacer) MarkResurfaced(item *store.Item) error {
	now := r.now().UnixMilli()
	item.LastResurfacedAt = &now
	if err := r.db.UpdateResurfacing(item); err != nil {
		return fmt.Errorf("mark resurfaced: %w", err)
	}
	return nil
}

// ResetStaleIntervals snaps long-idle items back to the default interval:
// any eligible item with no activity for 60 days whose interval grew past
// the default gets its interval reset to 7. Idempotent, safe on every tick.
// Returns the number of items reset.
func (r *Resurfacer) ResetStaleIntervals() (int, error) {
	items, err := r.db.ListResurfaceEligible()
	if err != nil {
		return 0, fmt.Errorf("list eligible: %w", err)
	}

	cutoff := r.now().Add(-staleAfterDays * 24 * time.Hour).UnixMilli()
	reset := 0

	for i := range items {
		item := &items[i]
		if item.ResurfaceIntervalDays <= DefaultIntervalDays {
			continue
		}

		lastActivity := item.CreatedAt
		if item.LastEngagedAt != nil {
			lastActivity = *item.LastEngagedAt
		} else if item.LastResurfacedAt != nil {
			lastActivity = *item.LastResurfacedAt
		}
		if lastActivity > cutoff {
			continue
		}

		item.ResurfaceIntervalDays = DefaultIntervalDays
		if err := r.db.UpdateResurfacing(item); err != nil {
			return reset, fmt.Errorf("reset interval: %w", err)
		}
		reset++
	}

	return reset, nil
}

// NextCandidate returns the single most-overdue eligible item whose due
// date has passed, skipping excluded item UUIDs. Ties on the due date
// break by item UUID so selection stays deterministic. Returns nil when
// nothing is due.
func (r *Resurfacer) NextCandidate(excluding map[string]bool) (*store.Item, error) {
	items, err := r.db.ListResurfaceEligible()
	if err != nil {
		return nil, fmt.Errorf("list eligible: %w", err)
	}

	now := r.now()
	var due []store.Item
	for _, item := range items {
		if excluding[item.UUID] {
			continue
		}
		if NextResurfaceAt(&item).After(now) {
			continue
		}
		due = append(due, item)
	}
	if len(due) == 0 {
		return nil, nil
	}

	sort.Slice(due, func(a, b int) bool {
		ta, tb := NextResurfaceAt(&due[a]), NextResurfaceAt(&due[b])
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return due[a].UUID < due[b].UUID
	})

	return &due[0], nil
}

// Context returns a short human-readable hint for a resurfaced item:
// the most recent annotation (truncated), else the title of the first
// connected item. Empty string when the item has neither.
func (r *Resurfacer) Context(item *store.Item) string {
	ann, err := r.db.LatestAnnotation(item.ID)
	if err == nil && ann != nil {
		return fmt.Sprintf("you noted: %q", truncate(ann.Body, 80))
	}

	if targets, err := r.db.OutgoingTargets(item.ID); err == nil && len(targets) > 0 {
		return fmt.Sprintf("linked to %q", targets[0].Title)
	}
	if sources, err := r.db.IncomingSources(item.ID); err == nil && len(sources) > 0 {
		return fmt.Sprintf("linked from %q", sources[0].Title)
	}
	return ""
}

// QueueStats summarizes the resurfacing queue for the settings surface.
type QueueStats struct {
	Total    int `json:"total"`
	Overdue  int `json:"overdue"`
	Upcoming int `json:"upcoming"`
	Paused   int `json:"paused"`
}

// Stats returns counts over the resurfacing queue: eligible items split
// into overdue and upcoming, plus how many are paused.
func (r *Resurfacer) Stats() (QueueStats, error) {
	items, err := r.db.ListResurfaceEligible()
	if err != nil {
		return QueueStats{}, fmt.Errorf("list eligible: %w", err)
	}

	var stats QueueStats
	now := r.now()
	for i := range items {
		stats.Total++
		if NextResurfaceAt(&items[i]).After(now) {
			stats.Upcoming++
		} else {
			stats.Overdue++
		}
	}

	paused, err := r.db.CountResurfacePaused()
	if err != nil {
		return stats, fmt.Errorf("count paused: %w", err)
	}
	stats.Paused = paused
	return stats, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

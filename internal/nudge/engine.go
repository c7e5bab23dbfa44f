package nudge

import (
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/realtobyfu/grove-sub000/internal/config"
	"github.com/realtobyfu/grove-sub000/internal/store"
)

const (
	// Acted-on nudges in the trailing week needed to lift the daily cap.
	highEngagementActions = 3
	highEngagementWindow  = 7 * 24 * time.Hour

	// A dismissed resurface nudge suppresses its item from spaced
	// selection for a week; the legacy fallback backs off for a month.
	resurfaceDismissWindow = 7 * 24 * time.Hour
	legacyDismissWindow    = 30 * 24 * time.Hour
	legacyStaleAfter       = 14 * 24 * time.Hour

	staleInboxAge       = 14 * 24 * time.Hour
	staleInboxThreshold = 5

	// Type-level cooldown shared by the non-resurface generators.
	typeCooldownWindow = 30 * 24 * time.Hour

	clusterWindow  = 7 * 24 * time.Hour
	clusterMinSize = 3
	clusterOverlap = 2
	streakMinDays  = 3
	streakWalkDays = 30
)

// Engine is the nudge scheduler. On each tick it resets stale resurfacing
// state, checks the daily budget, then runs the five candidate generators
// in fixed order, each producing at most one new pending nudge.
type Engine struct {
	db         *store.DB
	cfg        config.NudgeConfig
	resurfacer *Resurfacer

	// Injectable for tests: the clock and the legacy fallback's RNG.
	now func() time.Time
	rng *rand.Rand

	running atomic.Bool
	stopCh  chan struct{}
}

// NewEngine creates an Engine with the given settings.
func NewEngine(db *store.DB, cfg config.NudgeConfig) *Engine {
	return &Engine{
		db:         db,
		cfg:        cfg,
		resurfacer: NewResurfacer(db),
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:     make(chan struct{}),
	}
}

// Resurfacer exposes the engine's resurfacing service for the API layer.
func (e *Engine) Resurfacer() *Resurfacer {
	return e.resurfacer
}

// GenerateNudges runs one scheduler tick. Idempotent per call; a tick that
// fires while another is still running is a no-op, so overlapping timer
// fires cannot interleave generators.
func (e *Engine) GenerateNudges() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	defer e.running.Store(false)

	if n, err := e.resurfacer.ResetStaleIntervals(); err != nil {
		log.Printf("nudge: reset stale intervals: %v", err)
	} else if n > 0 {
		log.Printf("nudge: reset %d stale intervals", n)
	}

	generators := []struct {
		name    string
		enabled bool
		run     func() (bool, error)
	}{
		{store.NudgeResurface, e.cfg.Resurface, e.generateResurface},
		{store.NudgeStaleInbox, e.cfg.StaleInbox, e.generateStaleInbox},
		{store.NudgeConnectionPrompt, e.cfg.ConnectionPrompt, e.generateConnectionPrompt},
		{store.NudgeStreak, e.cfg.Streak, e.generateStreak},
		{store.NudgeContinueCourse, e.cfg.ContinueCourse, e.generateContinueCourse},
	}

	for _, g := range generators {
		if !g.enabled {
			continue
		}
		// The budget gate is re-evaluated before each generator, not
		// once per tick.
		ok, err := e.budgetAllows()
		if err != nil {
			log.Printf("nudge: budget check: %v", err)
			continue
		}
		if !ok {
			continue
		}

		created, err := g.run()
		if err != nil {
			log.Printf("nudge: %s generator: %v", g.name, err)
			continue
		}
		if created {
			log.Printf("nudge: created %s nudge", g.name)
		}
	}
}

// StartTimer runs a tick immediately and then on the configured schedule.
func (e *Engine) StartTimer() {
	e.GenerateNudges()

	go func() {
		ticker := time.NewTicker(time.Duration(e.cfg.ScheduleIntervalHours) * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.GenerateNudges()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's timer goroutine.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// budgetAllows checks the daily cap: the count of nudges created since
// local midnight must stay under the cap, unless the user has acted on
// enough nudges this week to earn the override.
func (e *Engine) budgetAllows() (bool, error) {
	now := e.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today, err := e.db.CountNudgesCreatedSince(midnight.UnixMilli())
	if err != nil {
		return false, err
	}
	if today < e.cfg.MaxPerDay {
		return true, nil
	}

	acted, err := e.db.CountActedOnSince(now.Add(-highEngagementWindow).UnixMilli())
	if err != nil {
		return false, err
	}
	return acted >= highEngagementActions, nil
}

// dismissedWithin reports whether a nudge of the given type was dismissed
// inside the trailing window. A non-nil match narrows the check to nudges
// satisfying the predicate (cluster overlap, exact target, and so on).
func (e *Engine) dismissedWithin(typ string, window time.Duration, match func(store.Nudge) bool) (bool, error) {
	cutoff := e.now().Add(-window).UnixMilli()
	dismissed, err := e.db.DismissedNudgesSince(typ, cutoff)
	if err != nil {
		return false, err
	}
	for _, n := range dismissed {
		if match == nil || match(n) {
			return true, nil
		}
	}
	return false, nil
}

// dismissedTargets returns the target item UUIDs of nudges of the given
// type dismissed inside the trailing window.
func (e *Engine) dismissedTargets(typ string, window time.Duration) (map[string]bool, error) {
	cutoff := e.now().Add(-window).UnixMilli()
	dismissed, err := e.db.DismissedNudgesSince(typ, cutoff)
	if err != nil {
		return nil, err
	}

	targets := make(map[string]bool, len(dismissed))
	for _, n := range dismissed {
		if n.TargetItem != "" {
			targets[n.TargetItem] = true
		}
	}
	return targets, nil
}

// boardMuted reports whether every board the item belongs to has nudges
// disabled. An item with no boards is never muted.
func (e *Engine) boardMuted(itemID int64) (bool, error) {
	boards, err := e.db.BoardsForItem(itemID)
	if err != nil {
		return false, err
	}
	if len(boards) == 0 {
		return false, nil
	}
	for _, b := range boards {
		if b.NudgesEnabled() {
			return false, nil
		}
	}
	return true, nil
}

// overlapCount returns how many of the given UUIDs are in the set.
func overlapCount(ids []string, set map[string]bool) int {
	n := 0
	for _, id := range ids {
		if set[id] {
			n++
		}
	}
	return n
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/realtobyfu/grove-sub000/internal/nudge"
	"github.com/realtobyfu/grove-sub000/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func itemJSON(item *store.Item) map[string]any {
	return map[string]any{
		"id":                      item.UUID,
		"title":                   item.Title,
		"status":                  item.Status,
		"annotation_count":        item.AnnotationCount,
		"connection_count":        item.ConnectionCount,
		"resurface_count":         item.ResurfaceCount,
		"resurface_interval_days": item.ResurfaceIntervalDays,
		"resurfacing_eligible":    item.ResurfacingEligible(),
		"resurfacing_paused":      item.ResurfacePaused,
		"next_resurface_at":       nudge.NextResurfaceAt(item).UnixMilli(),
		"created_at":              item.CreatedAt,
		"updated_at":              item.UpdatedAt,
	}
}

func nudgeJSON(n *store.Nudge) map[string]any {
	return map[string]any{
		"id":               n.UUID,
		"type":             n.Type,
		"message":          n.Message,
		"status":           n.Status,
		"target_item":      n.TargetItem,
		"related_item_ids": n.RelatedItemIDs,
		"created_at":       n.CreatedAt,
	}
}

// itemFromURL resolves the {itemID} URL parameter to an item. Writes the
// error response itself and returns nil when the item cannot be resolved.
func (s *Server) itemFromURL(w http.ResponseWriter, r *http.Request) *store.Item {
	id := chi.URLParam(r, "itemID")
	item, err := s.db.GetItemByUUID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return nil
	}
	return item
}

// --- items ---

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string   `json:"title"`
		Status string   `json:"status"`
		Tags   []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	item, err := s.db.CreateItem(req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, t := range req.Tags {
		if err := s.db.AddTag(item.ID, t); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.Status != "" && req.Status != store.StatusInbox {
		if err := s.db.SetItemStatus(item.ID, req.Status); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		item.Status = req.Status
	}

	writeJSON(w, http.StatusCreated, itemJSON(item))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item := s.itemFromURL(w, r)
	if item == nil {
		return
	}

	body := itemJSON(item)
	if tags, err := s.db.TagsForItem(item.ID); err == nil {
		body["tags"] = tags
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSetItemStatus(w http.ResponseWriter, r *http.Request) {
	item := s.itemFromURL(w, r)
	if item == nil {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	switch req.Status {
	case store.StatusInbox, store.StatusActive, store.StatusArchived, store.StatusDismissed:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := s.db.SetItemStatus(item.ID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) handleAddAnnotation(w http.ResponseWriter, r *http.Request) {
	item := s.itemFromURL(w, r)
	if item == nil {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body required")
		return
	}

	wasEligible := item.ResurfacingEligible()
	ann, err := s.db.AddAnnotation(item.ID, req.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Annotating an already-eligible item counts as engagement and pushes
	// its next resurface date out. The first annotation only makes the
	// item eligible.
	if wasEligible {
		if fresh, err := s.db.GetItemByID(item.ID); err == nil && fresh != nil {
			s.engine.Resurfacer().RecordEngagement(fresh)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"annotation_id": ann.ID,
		"created_at":    ann.CreatedAt,
	})
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	item := s.itemFromURL(w, r)
	if item == nil {
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	target, err := s.db.GetItemByUUID(req.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "target item not found")
		return
	}

	wasEligible := item.ResurfacingEligible()
	if err := s.db.AddConnection(item.ID, target.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if wasEligible {
		if fresh, err := s.db.GetItemByID(item.ID); err == nil && fresh != nil {
			s.engine.Resurfacer().RecordEngagement(fresh)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "connected"})
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	item := s.itemFromURL(w, r)
	if item == nil {
		return
	}

	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag required")
		return
	}

	if err := s.db.AddTag(item.ID, req.Tag); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "tagged"})
}

// --- boards ---

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title               string `json:"title"`
		NudgeFrequencyHours *int   `json:"nudge_frequency_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	board, err := s.db.CreateBoard(req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.NudgeFrequencyHours != nil {
		if err := s.db.SetNudgeFrequency(board.ID, *req.NudgeFrequencyHours); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		board.NudgeFrequencyHours = *req.NudgeFrequencyHours
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":                    board.UUID,
		"title":                 board.Title,
		"nudge_frequency_hours": board.NudgeFrequencyHours,
	})
}

func (s *Server) handleAddBoardItem(w http.ResponseWriter, r *http.Request) {
	board, err := s.db.GetBoardByUUID(chi.URLParam(r, "boardID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if board == nil {
		writeError(w, http.StatusNotFound, "board not found")
		return
	}

	var req struct {
		Item string `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	item, err := s.db.GetItemByUUID(req.Item)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := s.db.AddItemToBoard(board.ID, item.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// --- courses ---

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	course, err := s.db.CreateCourse(req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    course.UUID,
		"title": course.Title,
	})
}

func (s *Server) handleAddLecture(w http.ResponseWriter, r *http.Request) {
	course, err := s.db.GetCourseByUUID(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if course == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}

	var req struct {
		Item string `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	item, err := s.db.GetItemByUUID(req.Item)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	position, err := s.db.AddLecture(course.ID, item.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"position": position})
}

func (s *Server) handleCompleteLecture(w http.ResponseWriter, r *http.Request) {
	course, err := s.db.GetCourseByUUID(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if course == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}
	item, err := s.db.GetItemByUUID(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := s.db.CompleteLecture(course.ID, item.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Watching a lecture is activity on the item, which feeds streaks.
	s.db.TouchItem(item.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// --- nudges ---

func (s *Server) handleGenerateNudges(w http.ResponseWriter, r *http.Request) {
	// Local-store work only, so run the tick synchronously.
	s.engine.GenerateNudges()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCurrentNudge(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.CurrentNudge()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "no current nudge")
		return
	}
	writeJSON(w, http.StatusOK, nudgeJSON(n))
}

func (s *Server) handleListNudges(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			limit = v
		}
	}

	nudges, err := s.db.ListRecentNudges(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(nudges))
	for i := range nudges {
		out = append(out, nudgeJSON(&nudges[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"nudges": out})
}

func (s *Server) handleNudgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.NudgeActionStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (s *Server) handleNudgeShown(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkNudgeShown(chi.URLParam(r, "nudgeID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shown"})
}

func (s *Server) handleNudgeActedOn(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkNudgeActedOn(chi.URLParam(r, "nudgeID")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acted_on"})
}

func (s *Server) handleNudgeDismissed(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkNudgeDismissed(chi.URLParam(r, "nudgeID")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

// --- resurfacing ---

func (s *Server) handleResurfacingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Resurfacer().Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

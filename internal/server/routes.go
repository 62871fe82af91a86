package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendhq/tend/internal/engine"
	"github.com/tendhq/tend/internal/store"
)

// friendJSON is the wire shape for a friend. Scores are computed at
// render time so responses never carry stale stored values.
type friendJSON struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Tier                string   `json:"tier"`
	Archetype           string   `json:"archetype,omitempty"`
	CurrentScore        float64  `json:"current_score"`
	Momentum            float64  `json:"momentum"`
	DisplayScore        float64  `json:"display_score"`
	Resilience          float64  `json:"resilience"`
	NeedsAttention      bool     `json:"needs_attention"`
	IsDormant           bool     `json:"is_dormant"`
	DormantSince        *int64   `json:"dormant_since,omitempty"`
	TypicalIntervalDays *float64 `json:"typical_interval_days,omitempty"`
	ToleranceWindowDays *float64 `json:"tolerance_window_days,omitempty"`
	CreatedAt           int64    `json:"created_at"`
}

func (s *Server) friendJSON(f *store.Friend, now time.Time) friendJSON {
	cfg := s.engine.Config()
	cur := engine.CurrentScore(cfg, f, now)
	return friendJSON{
		ID:                  f.ID,
		Name:                f.Name,
		Tier:                f.Tier,
		Archetype:           f.Archetype,
		CurrentScore:        cur,
		Momentum:            engine.CurrentMomentum(cfg, f, now),
		DisplayScore:        engine.DisplayScore(cfg, f, now),
		Resilience:          f.Resilience,
		NeedsAttention:      cur <= cfg.TierOf(f.Tier).AttentionThreshold,
		IsDormant:           f.IsDormant,
		DormantSince:        f.DormantSince,
		TypicalIntervalDays: f.TypicalIntervalDays,
		ToleranceWindowDays: f.ToleranceWindowDays,
		CreatedAt:           f.CreatedAt,
	}
}

func (s *Server) handleListFriends(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")

	var friends []store.Friend
	var err error
	if tier != "" {
		if !store.ValidTier(tier) {
			http.Error(w, `{"error":"unknown tier"}`, http.StatusBadRequest)
			return
		}
		friends, err = s.db.ListFriendsByTier(tier)
	} else {
		friends, err = s.db.ListFriends()
	}
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	now := time.Now()
	out := make([]friendJSON, 0, len(friends))
	for i := range friends {
		out = append(out, s.friendJSON(&friends[i], now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(out),
		"friends": out,
	})
}

func (s *Server) handleCreateFriend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Tier      string `json:"tier"`
		Archetype string `json:"archetype"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, `{"error":"name required"}`, http.StatusBadRequest)
		return
	}
	if req.Tier == "" {
		req.Tier = store.TierCloseFriends
	}
	if !store.ValidTier(req.Tier) {
		http.Error(w, `{"error":"unknown tier"}`, http.StatusBadRequest)
		return
	}
	if !store.ValidArchetype(req.Archetype) {
		http.Error(w, `{"error":"unknown archetype"}`, http.StatusBadRequest)
		return
	}

	f := &store.Friend{Name: req.Name, Tier: req.Tier, Archetype: req.Archetype}
	if err := s.db.CreateFriend(f); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s.friendJSON(f, time.Now()))
}

func (s *Server) handleGetFriend(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")

	h, err := s.engine.FriendHealth(friendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if h == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"friend":          s.friendJSON(h.Friend, time.Now()),
		"current_score":   h.CurrentScore,
		"momentum":        h.Momentum,
		"display_score":   h.DisplayScore,
		"tolerance_days":  h.ToleranceDays,
		"pattern":         h.Pattern,
		"reciprocity":     h.Reciprocity,
		"needs_attention": h.NeedsAttention,
	})
}

func (s *Server) handleUpdateFriend(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")

	var req struct {
		Name      *string `json:"name"`
		Tier      *string `json:"tier"`
		Archetype *string `json:"archetype"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	f, err := s.db.GetFriend(friendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			http.Error(w, `{"error":"name cannot be empty"}`, http.StatusBadRequest)
			return
		}
		f.Name = name
	}
	if req.Tier != nil {
		if !store.ValidTier(*req.Tier) {
			http.Error(w, `{"error":"unknown tier"}`, http.StatusBadRequest)
			return
		}
		f.Tier = *req.Tier
	}
	if req.Archetype != nil {
		if !store.ValidArchetype(*req.Archetype) {
			http.Error(w, `{"error":"unknown archetype"}`, http.StatusBadRequest)
			return
		}
		f.Archetype = *req.Archetype
	}

	if err := s.db.UpdateFriend(f); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	// Inner circle never goes dormant, so promotion wakes immediately
	// instead of waiting for the next sweep.
	if f.Tier == store.TierInnerCircle && f.IsDormant {
		if err := s.db.WakeDormant([]string{f.ID}); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		f.IsDormant = false
		f.DormantSince = nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.friendJSON(f, time.Now()))
}

func (s *Server) handleDeleteFriend(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")

	f, err := s.db.GetFriend(friendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	if err := s.db.DeleteFriend(friendID); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func (s *Server) handleLogWeave(w http.ResponseWriter, r *http.Request) {
	var in engine.WeaveInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	res, err := s.engine.LogWeave(r.Context(), in)
	if err != nil {
		code := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			code = http.StatusNotFound
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

// weaveJSON is the wire shape for one weave in a friend's history.
type weaveJSON struct {
	ID          string  `json:"id"`
	OccurredAt  int64   `json:"occurred_at"`
	Category    string  `json:"category,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	DurationMin int     `json:"duration_min,omitempty"`
	Vibe        int     `json:"vibe,omitempty"`
	GroupSize   int     `json:"group_size"`
	Status      string  `json:"status"`
	Initiator   string  `json:"initiator,omitempty"`
	Importance  string  `json:"importance,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	Reflection  string  `json:"reflection,omitempty"`
	Points      float64 `json:"points"`
}

func (s *Server) handleFriendWeaves(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")

	f, err := s.db.GetFriend(friendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	weaves, err := s.db.FriendWeaves(friendID, limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]weaveJSON, 0, len(weaves))
	for _, fw := range weaves {
		out = append(out, weaveJSON{
			ID:          fw.ID,
			OccurredAt:  fw.OccurredAt,
			Category:    fw.Category,
			Kind:        fw.Kind,
			DurationMin: fw.DurationMin,
			Vibe:        fw.Vibe,
			GroupSize:   fw.GroupSize,
			Status:      fw.Status,
			Initiator:   fw.Initiator,
			Importance:  fw.Importance,
			Notes:       fw.Notes,
			Reflection:  fw.Reflection,
			Points:      fw.Points,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":  len(out),
		"weaves": out,
	})
}

func (s *Server) handleDeleteWeave(w http.ResponseWriter, r *http.Request) {
	weaveID := chi.URLParam(r, "weaveID")

	wv, err := s.db.GetWeave(weaveID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if wv == nil {
		http.Error(w, `{"error":"weave not found"}`, http.StatusNotFound)
		return
	}

	if err := s.db.DeleteWeave(weaveID); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func (s *Server) handleFriendDrift(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")

	d, err := s.engine.Drift(friendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if d == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

func (s *Server) handleFriendSuggestions(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")

	suggestions, err := s.engine.Suggestions(friendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if suggestions == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"friend_id":   friendID,
		"suggestions": suggestions,
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	nf, err := s.engine.Forecast(0)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	count, err := s.db.CountFriends()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"health":            nf.CurrentHealth,
		"friend_count":      count,
		"needing_attention": nf.NeedingAttention,
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n >= 0 {
			days = n
		}
	}

	nf, err := s.engine.Forecast(days)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nf)
}

// intentionJSON is the wire shape for an intention.
type intentionJSON struct {
	ID          string `json:"id"`
	FriendID    string `json:"friend_id"`
	Category    string `json:"category,omitempty"`
	Note        string `json:"note,omitempty"`
	DueAt       *int64 `json:"due_at,omitempty"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	FulfilledAt *int64 `json:"fulfilled_at,omitempty"`
}

func intentionJSONFrom(it *store.Intention) intentionJSON {
	return intentionJSON{
		ID:          it.ID,
		FriendID:    it.FriendID,
		Category:    it.Category,
		Note:        it.Note,
		DueAt:       it.DueAt,
		Status:      it.Status,
		CreatedAt:   it.CreatedAt,
		FulfilledAt: it.FulfilledAt,
	}
}

func (s *Server) handleCreateIntention(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendID string `json:"friend_id"`
		Category string `json:"category"`
		Note     string `json:"note"`
		DueAt    *int64 `json:"due_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.FriendID == "" {
		http.Error(w, `{"error":"friend_id required"}`, http.StatusBadRequest)
		return
	}
	if req.Category != "" && !s.engine.Config().KnownCategory(req.Category) {
		http.Error(w, `{"error":"unknown category"}`, http.StatusBadRequest)
		return
	}

	f, err := s.db.GetFriend(req.FriendID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.Error(w, `{"error":"friend not found"}`, http.StatusNotFound)
		return
	}

	it := &store.Intention{
		FriendID: req.FriendID,
		Category: req.Category,
		Note:     strings.TrimSpace(req.Note),
		DueAt:    req.DueAt,
	}
	if err := s.db.CreateIntention(it); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(intentionJSONFrom(it))
}

func (s *Server) handleListIntentions(w http.ResponseWriter, r *http.Request) {
	friendID := r.URL.Query().Get("friend")
	status := r.URL.Query().Get("status")
	switch status {
	case "", store.IntentionOpen, store.IntentionFulfilled, store.IntentionAbandoned:
	default:
		http.Error(w, `{"error":"unknown status"}`, http.StatusBadRequest)
		return
	}

	intentions, err := s.db.ListIntentions(friendID, status)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]intentionJSON, 0, len(intentions))
	for i := range intentions {
		out = append(out, intentionJSONFrom(&intentions[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":      len(out),
		"intentions": out,
	})
}

func (s *Server) handleFulfillIntention(w http.ResponseWriter, r *http.Request) {
	intentionID := chi.URLParam(r, "intentionID")

	it, err := s.db.GetIntention(intentionID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if it == nil {
		http.Error(w, `{"error":"intention not found"}`, http.StatusNotFound)
		return
	}

	if err := s.db.FulfillIntention(intentionID); err != nil {
		if errors.Is(err, store.ErrIntentionNotOpen) {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "fulfilled"})
}

func (s *Server) handleAbandonIntention(w http.ResponseWriter, r *http.Request) {
	intentionID := chi.URLParam(r, "intentionID")

	it, err := s.db.GetIntention(intentionID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if it == nil {
		http.Error(w, `{"error":"intention not found"}`, http.StatusNotFound)
		return
	}

	if err := s.db.AbandonIntention(intentionID); err != nil {
		if errors.Is(err, store.ErrIntentionNotOpen) {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "abandoned"})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.SweepDormancy(r.Context())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

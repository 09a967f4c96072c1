// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/arcadelab/scorekeep/internal/domain/model"
)

// HistoryDependencies defines the interface for history reads.
type HistoryDependencies interface {
	GetUserHistory(ctx context.Context, userID string, key *model.LeaderboardKey, limit int) ([]model.ScoreRecord, error)
}

// HistoryHandler handles submission history requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// historyEntry is the JSON shape of one submitted record.
type historyEntry struct {
	RecordID        int64     `json:"record_id"`
	GameMode        string    `json:"game_mode"`
	StageID         int       `json:"stage_id"`
	Score           int64     `json:"score"`
	ClearTime       float64   `json:"clear_time"`
	WaveReached     int       `json:"wave_reached"`
	EnemiesDefeated int       `json:"enemies_defeated"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// HandleGetHistory handles GET /history/{user_id} requests. The
// game_mode and stage_id parameters are optional as a pair; without
// them the history spans all leaderboards.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/history/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var key *model.LeaderboardKey
	if r.URL.Query().Get("game_mode") != "" || r.URL.Query().Get("stage_id") != "" {
		k, err := leaderboardKeyFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		key = &k
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	recs, err := h.deps.GetUserHistory(r.Context(), userID, key, limit)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}

	entries := make([]historyEntry, len(recs))
	for i, rec := range recs {
		entries[i] = historyEntry{
			RecordID:        rec.ID,
			GameMode:        rec.GameMode,
			StageID:         rec.StageID,
			Score:           rec.Score,
			ClearTime:       rec.ClearTime,
			WaveReached:     rec.WaveReached,
			EnemiesDefeated: rec.EnemiesDefeated,
			RecordedAt:      rec.RecordedAt,
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

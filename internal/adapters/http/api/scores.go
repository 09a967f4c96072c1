// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	service "github.com/arcadelab/scorekeep/internal/app"
)

// ScoreDependencies defines the interface for score submission.
type ScoreDependencies interface {
	Submit(ctx context.Context, sub service.Submission) (int64, error)
}

// ScoresHandler handles score submission requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the JSON schema for POST /scores.
type scoreRequest struct {
	UserID          string  `json:"user_id"`
	GameMode        string  `json:"game_mode"`
	StageID         int     `json:"stage_id"`
	Score           int64   `json:"score"`
	ClearTime       float64 `json:"clear_time"`
	WaveReached     int     `json:"wave_reached"`
	EnemiesDefeated int     `json:"enemies_defeated"`
}

func (s scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(s.UserID) == "":
		return NewKind("api.post_score", ErrBadRequest)
	case strings.TrimSpace(s.GameMode) == "":
		return NewKind("api.post_score", ErrBadRequest)
	}
	return nil
}

type scoreResponse struct {
	RecordID int64 `json:"record_id"`
}

// HandlePostScore handles POST /scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	id, err := h.deps.Submit(r.Context(), service.Submission{
		UserID:          req.UserID,
		GameMode:        req.GameMode,
		StageID:         req.StageID,
		Score:           req.Score,
		ClearTime:       req.ClearTime,
		WaveReached:     req.WaveReached,
		EnemiesDefeated: req.EnemiesDefeated,
	})
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, scoreResponse{RecordID: id})
}

// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// ScoreRecord represents a single accepted score submission.
// Records are append-only: the store assigns ID and nothing ever
// updates or deletes a row afterwards.
type ScoreRecord struct {
	ID              int64     // store-assigned, monotonic
	UserID          string    // opaque identifier
	GameMode        string    // enum-like tag, e.g. "Survivor"
	StageID         int       // >= 1
	Score           int64     // >= 0
	ClearTime       float64   // seconds, >= 0
	WaveReached     int       // auxiliary
	EnemiesDefeated int       // auxiliary
	RecordedAt      time.Time // set at submission time
}

// Key returns the leaderboard partition this record belongs to.
func (r ScoreRecord) Key() LeaderboardKey {
	return LeaderboardKey{GameMode: r.GameMode, StageID: r.StageID}
}

// LeaderboardKey partitions the ranking space. Ranks are never
// compared across keys.
type LeaderboardKey struct {
	GameMode string
	StageID  int
}

// String renders the key in "mode:stage" form, used for cache keys
// and log fields.
func (k LeaderboardKey) String() string {
	return fmt.Sprintf("%s:%d", k.GameMode, k.StageID)
}

// Better reports whether a beats b under the personal-best ordering:
// higher score wins; on equal score, lower clear time wins; remaining
// ties go to the earlier recording. Every ranking computation in the
// engine must honor exactly this ordering.
func Better(a, b ScoreRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ClearTime != b.ClearTime {
		return a.ClearTime < b.ClearTime
	}
	return a.RecordedAt.Before(b.RecordedAt)
}

// LeaderboardEntry is the read shape returned by ranking queries.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Score      int64     `json:"score"`
	ClearTime  float64   `json:"clear_time"`
	RecordedAt time.Time `json:"recorded_at"`
}

package store

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/arcadelab/scorekeep/internal/domain/model"
)

// scoreRow is the bun mapping for the score_records table.
type scoreRow struct {
	bun.BaseModel `bun:"table:score_records,alias:sr"`

	ID              int64     `bun:"id,pk,autoincrement"`
	UserID          string    `bun:"user_id,notnull"`
	GameMode        string    `bun:"game_mode,notnull"`
	StageID         int       `bun:"stage_id,notnull"`
	Score           int64     `bun:"score,notnull"`
	ClearTime       float64   `bun:"clear_time,notnull"`
	WaveReached     int       `bun:"wave_reached"`
	EnemiesDefeated int       `bun:"enemies_defeated"`
	RecordedAt      time.Time `bun:"recorded_at,notnull"`
}

func rowFromRecord(rec model.ScoreRecord) scoreRow {
	return scoreRow{
		ID:              rec.ID,
		UserID:          rec.UserID,
		GameMode:        rec.GameMode,
		StageID:         rec.StageID,
		Score:           rec.Score,
		ClearTime:       rec.ClearTime,
		WaveReached:     rec.WaveReached,
		EnemiesDefeated: rec.EnemiesDefeated,
		RecordedAt:      rec.RecordedAt,
	}
}

func (r scoreRow) toRecord() model.ScoreRecord {
	return model.ScoreRecord{
		ID:              r.ID,
		UserID:          r.UserID,
		GameMode:        r.GameMode,
		StageID:         r.StageID,
		Score:           r.Score,
		ClearTime:       r.ClearTime,
		WaveReached:     r.WaveReached,
		EnemiesDefeated: r.EnemiesDefeated,
		RecordedAt:      r.RecordedAt,
	}
}

func rowsToRecords(rows []scoreRow) []model.ScoreRecord {
	recs := make([]model.ScoreRecord, len(rows))
	for i, r := range rows {
		recs[i] = r.toRecord()
	}
	return recs
}

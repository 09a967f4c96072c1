package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/arcadelab/scorekeep/internal/domain/model"
	"github.com/arcadelab/scorekeep/internal/domain/ranking"
	"github.com/arcadelab/scorekeep/pkg/metrics"
)

// BunStore implements Store on a relational database through bun.
// Production runs it against Postgres (pgdialect/pgdriver); tests run
// it against in-memory SQLite. Every query is dialect-portable.
type BunStore struct {
	db *bun.DB
}

// NewBunStore wraps an existing bun handle.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// EnsureSchema creates the score_records table and its ranking index
// when they do not exist. Schema migration proper is external tooling;
// this only covers embedded and test databases.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*scoreRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return unavailable("create table", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*scoreRow)(nil)).
		Index("idx_score_records_key_user").
		Column("game_mode", "stage_id", "user_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return unavailable("create index", err)
	}
	return nil
}

// Append implements Store.
func (s *BunStore) Append(ctx context.Context, rec model.ScoreRecord) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	row := rowFromRecord(rec)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return 0, unavailable("append score", err)
	}
	return row.ID, nil
}

// bestPerUser filters score_records down to each user's single best
// row for the key: the row for which no better row by the same user
// exists. "Better" is the personal-best ordering, with row id as the
// final tie-break so exact duplicate submissions resolve to one row.
// Clear times are compared at the same tenths-of-a-millisecond
// resolution the rank-key fold uses, so this path and the cache path
// agree on ties exactly.
func (s *BunStore) bestPerUser(key model.LeaderboardKey) *bun.SelectQuery {
	better := s.db.NewSelect().
		TableExpr("score_records AS b").
		ColumnExpr("1").
		Where("b.user_id = sr.user_id").
		Where("b.game_mode = sr.game_mode").
		Where("b.stage_id = sr.stage_id").
		Where("(b.score > sr.score" +
			" OR (b.score = sr.score AND ROUND(b.clear_time * 10000) < ROUND(sr.clear_time * 10000))" +
			" OR (b.score = sr.score AND ROUND(b.clear_time * 10000) = ROUND(sr.clear_time * 10000)" +
			"     AND (b.recorded_at < sr.recorded_at" +
			"          OR (b.recorded_at = sr.recorded_at AND b.id < sr.id))))")

	return s.db.NewSelect().
		Model((*scoreRow)(nil)).
		Where("sr.game_mode = ?", key.GameMode).
		Where("sr.stage_id = ?", key.StageID).
		Where("NOT EXISTS (?)", better).
		OrderExpr("sr.score DESC").
		OrderExpr("ROUND(sr.clear_time * 10000) ASC").
		OrderExpr("sr.user_id ASC")
}

// TopPersonalBests implements Store.
func (s *BunStore) TopPersonalBests(ctx context.Context, key model.LeaderboardKey, limit, offset int) ([]model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var rows []scoreRow
	q := s.bestPerUser(key).Limit(limit)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, unavailable("top personal bests", err)
	}
	return rowsToRecords(rows), nil
}

// QueryPersonalBests implements Store.
func (s *BunStore) QueryPersonalBests(ctx context.Context, key model.LeaderboardKey) ([]model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var rows []scoreRow
	if err := s.bestPerUser(key).Scan(ctx, &rows); err != nil {
		return nil, unavailable("query personal bests", err)
	}
	return rowsToRecords(rows), nil
}

// BestForUser implements Store.
func (s *BunStore) BestForUser(ctx context.Context, key model.LeaderboardKey, userID string) (model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var row scoreRow
	err := s.db.NewSelect().
		Model(&row).
		Where("sr.user_id = ?", userID).
		Where("sr.game_mode = ?", key.GameMode).
		Where("sr.stage_id = ?", key.StageID).
		OrderExpr("sr.score DESC").
		OrderExpr("ROUND(sr.clear_time * 10000) ASC").
		OrderExpr("sr.recorded_at ASC").
		OrderExpr("sr.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScoreRecord{}, ErrNoRecord
	}
	if err != nil {
		return model.ScoreRecord{}, unavailable("best for user", err)
	}
	return row.toRecord(), nil
}

// CountBetter implements Store. Any single record with a strictly
// better tuple makes its user rank ahead, so counting distinct users
// over raw rows equals counting over personal bests.
func (s *BunStore) CountBetter(ctx context.Context, key model.LeaderboardKey, best model.ScoreRecord) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	units := ranking.ClearTimeUnits(best.ClearTime)

	var n int
	err := s.db.NewSelect().
		TableExpr("score_records AS sr").
		ColumnExpr("COUNT(DISTINCT sr.user_id)").
		Where("sr.game_mode = ?", key.GameMode).
		Where("sr.stage_id = ?", key.StageID).
		Where("sr.user_id != ?", best.UserID).
		Where("(sr.score > ? OR (sr.score = ? AND ROUND(sr.clear_time * 10000) < ?))",
			best.Score, best.Score, units).
		Scan(ctx, &n)
	if err != nil {
		return 0, unavailable("count better", err)
	}
	return n, nil
}

// QueryUserScores implements Store.
func (s *BunStore) QueryUserScores(ctx context.Context, userID string, key *model.LeaderboardKey, limit int) ([]model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var rows []scoreRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("sr.user_id = ?", userID).
		OrderExpr("sr.recorded_at DESC").
		OrderExpr("sr.id DESC").
		Limit(limit)
	if key != nil {
		q = q.Where("sr.game_mode = ?", key.GameMode).
			Where("sr.stage_id = ?", key.StageID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, unavailable("query user scores", err)
	}
	return rowsToRecords(rows), nil
}

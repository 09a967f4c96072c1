// Package store provides durable, append-only persistence for score
// records and the authoritative ranking queries derived from them.
// The cache in internal/adapters/cache is a disposable projection of
// this store; whenever the two disagree, the store is right.
package store

import (
	"context"

	"github.com/arcadelab/scorekeep/internal/domain/model"
)

// Store is the durable score store contract.
type Store interface {
	// Append persists a new score record and returns its id. The
	// insert is a single atomic statement: it either fully succeeds or
	// leaves no state behind.
	Append(ctx context.Context, rec model.ScoreRecord) (int64, error)

	// TopPersonalBests returns a page of per-user best records for the
	// key, ordered by score desc, clear time asc (at rank-key
	// resolution), then user id asc.
	TopPersonalBests(ctx context.Context, key model.LeaderboardKey, limit, offset int) ([]model.ScoreRecord, error)

	// QueryPersonalBests returns every user's best record for the key,
	// in the same order as TopPersonalBests. Used to rebuild the cache.
	QueryPersonalBests(ctx context.Context, key model.LeaderboardKey) ([]model.ScoreRecord, error)

	// BestForUser returns the user's best record for the key, or
	// ErrNoRecord when the user has no qualifying submission.
	BestForUser(ctx context.Context, key model.LeaderboardKey, userID string) (model.ScoreRecord, error)

	// CountBetter returns the number of distinct users holding a
	// record with a strictly better (score, clear time) tuple than
	// best. The user's 1-based rank is CountBetter + 1.
	CountBetter(ctx context.Context, key model.LeaderboardKey, best model.ScoreRecord) (int, error)

	// QueryUserScores returns the user's submission history, newest
	// first. A nil key returns history across all leaderboards.
	QueryUserScores(ctx context.Context, userID string, key *model.LeaderboardKey, limit int) ([]model.ScoreRecord, error)
}

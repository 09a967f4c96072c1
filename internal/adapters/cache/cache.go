// Package cache defines the sorted leaderboard cache contract and its
// backing implementations. The cache is a derived, disposable
// projection of the score store: it may be absent or stale, it is
// rebuildable at any time, and it is never authoritative.
package cache

import (
	"context"

	"github.com/arcadelab/scorekeep/internal/domain/model"
)

// Member is one cached (user, rank key) pair for a leaderboard key.
type Member struct {
	UserID  string
	RankKey float64
}

// Cache maintains, per leaderboard key, an ordered collection of
// members ranked by rank key descending with ties broken by user id
// ascending.
type Cache interface {
	// UpsertIfGreater inserts the member or replaces its rank key,
	// but only when rankKey is strictly greater than the stored one.
	// The compare step is atomic at the cache layer, so racing
	// submissions can never regress a member to a worse value.
	// Returns true if the cache changed.
	UpsertIfGreater(ctx context.Context, key model.LeaderboardKey, userID string, rankKey float64) (bool, error)

	// GetTop returns up to count members starting at offset, ordered
	// by rank key descending then user id ascending. The page order is
	// stable across repeated calls with unchanged data.
	GetTop(ctx context.Context, key model.LeaderboardKey, count, offset int) ([]Member, error)

	// GetRank returns the 1-based rank of the member: the number of
	// members with a strictly greater rank key, plus one. Members with
	// equal rank keys share a rank. Returns ErrNotFound for unknown
	// members.
	GetRank(ctx context.Context, key model.LeaderboardKey, userID string) (int, error)

	// Remove evicts a single member.
	Remove(ctx context.Context, key model.LeaderboardKey, userID string) error

	// RemoveKey evicts a whole leaderboard key.
	RemoveKey(ctx context.Context, key model.LeaderboardKey) error

	// Count returns the number of members under key.
	Count(ctx context.Context, key model.LeaderboardKey) (int, error)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arcadelab/scorekeep/internal/domain/model"
	"github.com/arcadelab/scorekeep/pkg/metrics"
)

// RedisCache implements Cache on Redis sorted sets, one set per
// leaderboard key. ZADD GT provides the native atomic "replace only if
// greater" upsert, so racing submissions cannot regress a member.
//
// Redis orders equal-score members by member id, but ZREVRANGE walks
// that order backwards, which would break the user-id-ascending
// tie-break GetTop promises. GetTop therefore re-fetches the tie
// groups at the page boundaries in ascending order and reorders the
// in-page groups client-side.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption applies a configuration option to the RedisCache.
type RedisOption func(*RedisCache)

// WithKeyPrefix overrides the sorted-set key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: "scorekeep:lb:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) zkey(key model.LeaderboardKey) string {
	return c.prefix + key.String()
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// UpsertIfGreater implements Cache via ZADD GT CH.
func (c *RedisCache) UpsertIfGreater(ctx context.Context, key model.LeaderboardKey, userID string, rankKey float64) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	changed, err := c.client.ZAddArgs(ctx, c.zkey(key), redis.ZAddArgs{
		GT:      true,
		Ch:      true,
		Members: []redis.Z{{Score: rankKey, Member: userID}},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("zadd gt %s: %w", key, err)
	}
	return changed > 0, nil
}

// GetTop implements Cache.
func (c *RedisCache) GetTop(ctx context.Context, key model.LeaderboardKey, count, offset int) ([]Member, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if count < 1 {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		offset = 0
	}
	k := c.zkey(key)

	window, err := c.client.ZRevRangeWithScores(ctx, k, int64(offset), int64(offset+count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	if len(window) == 0 {
		return nil, nil
	}

	first := window[0].Score
	last := window[len(window)-1].Score

	// Position where the first boundary tie group begins.
	headStart, err := c.client.ZCount(ctx, k, "("+formatScore(first), "+inf").Result()
	if err != nil {
		return nil, fmt.Errorf("zcount %s: %w", key, err)
	}

	ordered, err := c.orderedWindow(ctx, k, window, first, last)
	if err != nil {
		return nil, err
	}

	idx := offset - int(headStart)
	if idx < 0 || idx >= len(ordered) {
		return nil, nil
	}
	end := idx + count
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[idx:end], nil
}

// orderedWindow rebuilds the fetched window in (rank key desc, user id
// asc) order, starting at the beginning of the first boundary tie
// group and ending at the end of the last one.
func (c *RedisCache) orderedWindow(ctx context.Context, k string, window []redis.Z, first, last float64) ([]Member, error) {
	firstGroup, err := c.tieGroup(ctx, k, first)
	if err != nil {
		return nil, err
	}
	if first == last {
		return firstGroup, nil
	}

	lastGroup, err := c.tieGroup(ctx, k, last)
	if err != nil {
		return nil, err
	}

	// Entries strictly between the boundary scores are complete tie
	// groups inside the window; sorting fixes their member order.
	middle := make([]Member, 0, len(window))
	for _, z := range window {
		if z.Score == first || z.Score == last {
			continue
		}
		middle = append(middle, Member{UserID: z.Member.(string), RankKey: z.Score})
	}
	sort.Slice(middle, func(i, j int) bool {
		if middle[i].RankKey != middle[j].RankKey {
			return middle[i].RankKey > middle[j].RankKey
		}
		return middle[i].UserID < middle[j].UserID
	})

	ordered := make([]Member, 0, len(firstGroup)+len(middle)+len(lastGroup))
	ordered = append(ordered, firstGroup...)
	ordered = append(ordered, middle...)
	ordered = append(ordered, lastGroup...)
	return ordered, nil
}

// tieGroup fetches every member holding exactly score, in ascending
// member order (Redis's native ZRANGEBYSCORE tie order).
func (c *RedisCache) tieGroup(ctx context.Context, k string, score float64) ([]Member, error) {
	s := formatScore(score)
	zs, err := c.client.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{Min: s, Max: s}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}
	group := make([]Member, 0, len(zs))
	for _, z := range zs {
		group = append(group, Member{UserID: z.Member.(string), RankKey: z.Score})
	}
	return group, nil
}

// GetRank implements Cache: strictly-greater count plus one, so tied
// members share a rank.
func (c *RedisCache) GetRank(ctx context.Context, key model.LeaderboardKey, userID string) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	k := c.zkey(key)
	score, err := c.client.ZScore(ctx, k, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("zscore %s: %w", key, err)
	}
	greater, err := c.client.ZCount(ctx, k, "("+formatScore(score), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("zcount %s: %w", key, err)
	}
	return int(greater) + 1, nil
}

// Remove implements Cache.
func (c *RedisCache) Remove(ctx context.Context, key model.LeaderboardKey, userID string) error {
	if err := c.client.ZRem(ctx, c.zkey(key), userID).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", key, err)
	}
	return nil
}

// RemoveKey implements Cache.
func (c *RedisCache) RemoveKey(ctx context.Context, key model.LeaderboardKey) error {
	if err := c.client.Del(ctx, c.zkey(key)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Count implements Cache.
func (c *RedisCache) Count(ctx context.Context, key model.LeaderboardKey) (int, error) {
	n, err := c.client.ZCard(ctx, c.zkey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", key, err)
	}
	return int(n), nil
}
